package reconcile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meshnode/meshnode-go/pkg/config"
	"github.com/meshnode/meshnode-go/pkg/node"
	"github.com/meshnode/meshnode-go/pkg/reconcile"
	"github.com/meshnode/meshnode-go/pkg/wire"
)

// mockDevice is a testify mock of reconcile.Device.
type mockDevice struct {
	mock.Mock
}

func (m *mockDevice) GetSection(ctx context.Context, s node.Section) (node.SectionValue, error) {
	args := m.Called(ctx, s)
	return args.Get(0).(node.SectionValue), args.Error(1)
}

func (m *mockDevice) WriteSection(ctx context.Context, v node.SectionValue) error {
	return m.Called(ctx, v).Error(0)
}

func (m *mockDevice) Channel(ctx context.Context, index int) (*wire.Channel, error) {
	args := m.Called(ctx, index)
	ch, _ := args.Get(0).(*wire.Channel)
	return ch, args.Error(1)
}

func (m *mockDevice) Channels(ctx context.Context) ([]*wire.Channel, error) {
	args := m.Called(ctx)
	chans, _ := args.Get(0).([]*wire.Channel)
	return chans, args.Error(1)
}

func TestInvalidValuesIssueNoRequests(t *testing.T) {
	dev := &mockDevice{}
	r := reconcile.New(dev, nil)

	results, err := r.Reconcile(context.Background(), config.Desired{Region: "MARS", Role: "CAPTAIN"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.Equal(t, reconcile.OutcomeInvalid, res.Outcome)
	}
	dev.AssertExpectations(t)
	dev.AssertNotCalled(t, "GetSection", mock.Anything, mock.Anything)
}

func TestUnreadableSectionIsNotWritten(t *testing.T) {
	timeout := context.DeadlineExceeded
	dev := &mockDevice{}
	dev.On("GetSection", mock.Anything, node.SectionRegion).Return(node.SectionValue{}, timeout).Once()
	dev.On("GetSection", mock.Anything, node.SectionRole).
		Return(node.SectionValue{Section: node.SectionRole, Device: &wire.DeviceConfig{Role: wire.RoleClient}}, nil).Once()
	dev.On("WriteSection", mock.Anything, mock.MatchedBy(func(v node.SectionValue) bool {
		return v.Section == node.SectionRole && v.Device.Role == wire.RoleRouter
	})).Return(nil).Once()

	r := reconcile.New(dev, nil)
	results, err := r.Reconcile(context.Background(), config.Desired{Region: "EU", Role: "ROUTER"})

	assert.ErrorIs(t, err, reconcile.ErrObservationUnavailable)
	assert.ErrorIs(t, err, timeout)
	require.Len(t, results, 2)
	assert.Equal(t, reconcile.OutcomeUnavailable, results[0].Outcome)
	assert.Equal(t, reconcile.OutcomeApplied, results[1].Outcome)
	dev.AssertExpectations(t)
	dev.AssertNumberOfCalls(t, "WriteSection", 1)
}

func TestChannelReadFailureIsUnavailable(t *testing.T) {
	dev := &mockDevice{}
	dev.On("Channel", mock.Anything, 1).Return(nil, errors.New("link lost")).Once()

	r := reconcile.New(dev, nil)
	desired := config.Desired{Channel: &config.Channel{Index: 1}}
	desired.Channel.Spec.Name = "Ops"
	results, err := r.Reconcile(context.Background(), desired)

	require.Error(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, reconcile.OutcomeUnavailable, results[0].Outcome)
	dev.AssertNotCalled(t, "WriteSection", mock.Anything, mock.Anything)
}
