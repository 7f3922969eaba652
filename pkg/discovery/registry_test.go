package discovery

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/servicediscovery"
	"github.com/aws/aws-sdk-go-v2/service/servicediscovery/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloudMapAPI struct {
	discoverOut *servicediscovery.DiscoverInstancesOutput
	discoverErr error
	registerErr error
	registerIn  *servicediscovery.RegisterInstanceInput
}

func (f *fakeCloudMapAPI) DiscoverInstances(_ context.Context, _ *servicediscovery.DiscoverInstancesInput, _ ...func(*servicediscovery.Options)) (*servicediscovery.DiscoverInstancesOutput, error) {
	return f.discoverOut, f.discoverErr
}

func (f *fakeCloudMapAPI) RegisterInstance(_ context.Context, in *servicediscovery.RegisterInstanceInput, _ ...func(*servicediscovery.Options)) (*servicediscovery.RegisterInstanceOutput, error) {
	f.registerIn = in
	return &servicediscovery.RegisterInstanceOutput{}, f.registerErr
}

func TestCloudMapClientDiscoverInstancesFiltersUnhealthy(t *testing.T) {
	fake := &fakeCloudMapAPI{
		discoverOut: &servicediscovery.DiscoverInstancesOutput{
			Instances: []types.HttpInstanceSummary{
				{
					HealthStatus: types.HealthStatusHealthy,
					Attributes:   map[string]string{AttrIPv4Canonical: "10.0.0.1", AttrPortCanonical: "8080"},
				},
				{
					HealthStatus: types.HealthStatusUnhealthy,
					Attributes:   map[string]string{AttrIPv4Canonical: "10.0.0.2", AttrPortCanonical: "8080"},
				},
			},
		},
	}
	c := &CloudMapClient{api: fake}

	instances, err := c.DiscoverInstances(context.Background(), "prod", "orders")
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "10.0.0.1", instances[0].Host)
}

func TestCloudMapClientRegisterInstance(t *testing.T) {
	fake := &fakeCloudMapAPI{}
	c := &CloudMapClient{api: fake}

	err := c.RegisterInstance(context.Background(), "svc-1", "inst-1", map[string]string{AttrIPv4Canonical: "10.0.0.1"})
	require.NoError(t, err)
	require.NotNil(t, fake.registerIn)
	assert.Equal(t, aws.ToString(fake.registerIn.ServiceId), "svc-1")
	assert.Equal(t, aws.ToString(fake.registerIn.InstanceId), "inst-1")
}

func TestCloudMapClientDiscoverInstancesError(t *testing.T) {
	fake := &fakeCloudMapAPI{discoverErr: assertErr{}}
	c := &CloudMapClient{api: fake}

	_, err := c.DiscoverInstances(context.Background(), "prod", "orders")
	require.Error(t, err)
}
