// Package discovery finds mesh nodes on the local network with mDNS.
//
// Nodes with network connectivity advertise the "_meshtastic._tcp" service
// on the stream API port. TXT records carry the node ID and short name:
//
//	id=!1234abcd
//	shortname=BASE
//
// Browsing aggregates entries by instance name so a node seen on several
// interfaces is reported once with all of its addresses. The simulated node
// uses the advertiser so it can be found the same way.
package discovery
