package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/meshnode/meshnode-go/pkg/wire"
)

var (
	// ErrRegionUnrecognized is returned for region tokens that name no
	// region, including UNSET.
	ErrRegionUnrecognized = errors.New("region unrecognized")

	// ErrRoleUnrecognized is returned for role names outside the role set.
	ErrRoleUnrecognized = errors.New("role unrecognized")
)

// regionAliases maps alternative spellings to canonical region names.
// Canonical names map to themselves implicitly.
var regionAliases = map[string]string{
	"EU":     "EU868",
	"EU_868": "EU868",
	"EU_433": "EU433",
	"AU":     "ANZ",
	"AU_915": "ANZ",
	"NZ":     "ANZ",
	"NZ_865": "NZ865",
	"UA":     "UA868",
	"UA_868": "UA868",
	"UA_433": "UA433",
	"MY_433": "MY433",
	"MY_919": "MY919",
	"SG_923": "SG923",
	"LORA24": "LORA_24",
}

// Aliases returns a copy of the alias table.
func Aliases() map[string]string {
	out := make(map[string]string, len(regionAliases))
	for k, v := range regionAliases {
		out[k] = v
	}
	return out
}

// NormalizeRegion trims and upper-cases token, resolves aliases and returns
// the canonical region. UNSET is not a valid target.
func NormalizeRegion(token string) (wire.RegionCode, error) {
	name := strings.ToUpper(strings.TrimSpace(token))
	if alias, ok := regionAliases[name]; ok {
		name = alias
	}
	code, ok := wire.ParseRegionCode(name)
	if !ok || code == wire.RegionUnset {
		return wire.RegionUnset, fmt.Errorf("%w: %q", ErrRegionUnrecognized, token)
	}
	return code, nil
}

// Regions returns the canonical regions that can be set.
func Regions() []wire.RegionCode {
	return wire.RegionCodes()
}

// ParseRole matches name case-insensitively against the role set.
func ParseRole(name string) (wire.Role, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for _, r := range wire.Roles() {
		if r.String() == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrRoleUnrecognized, name)
}
