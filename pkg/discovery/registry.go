package discovery

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/servicediscovery"
	"github.com/aws/aws-sdk-go-v2/service/servicediscovery/types"

	"lanemesh/pkg/laneerror"
)

// Registry attribute names recognized by this package, read side (spec §6).
// The canonical AWS Cloud Map attribute names are preferred; a lowercase
// "ipv4"/"port" fallback is tolerated for registries that don't use Cloud
// Map's reserved keys.
const (
	AttrIPv4Canonical = "AWS_INSTANCE_IPV4"
	AttrIPv4Fallback  = "ipv4"
	AttrPortCanonical = "AWS_INSTANCE_PORT"
	AttrGRPCPort      = "grpcPort"
	AttrPortFallback  = "port"
	AttrLane          = "lane"
)

// Instance is one entry in a registry's DiscoverInstances response, after
// the wire attributes are lifted into a map (spec §6).
type Instance struct {
	Host       string
	Attributes map[string]string
}

// RegistryClient is the external collaborator through which C4 and C6 reach
// the managed service registry (spec §6).
type RegistryClient interface {
	DiscoverInstances(ctx context.Context, namespace, service string) ([]Instance, error)
	RegisterInstance(ctx context.Context, registryID, instanceID string, attrs map[string]string) error
}

// CloudMapClient is the default RegistryClient, backed by AWS Cloud Map's
// DiscoverInstances/RegisterInstance APIs — the registry the canonical
// attribute names in spec §6 (AWS_INSTANCE_IPV4, AWS_INSTANCE_PORT) are
// drawn from.
type CloudMapClient struct {
	api interface {
		DiscoverInstances(ctx context.Context, params *servicediscovery.DiscoverInstancesInput, optFns ...func(*servicediscovery.Options)) (*servicediscovery.DiscoverInstancesOutput, error)
		RegisterInstance(ctx context.Context, params *servicediscovery.RegisterInstanceInput, optFns ...func(*servicediscovery.Options)) (*servicediscovery.RegisterInstanceOutput, error)
	}
}

// NewCloudMapClient loads the default AWS config (environment, shared
// config, IMDS — whatever the SDK's default chain finds) and returns a
// RegistryClient backed by AWS Cloud Map.
func NewCloudMapClient(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (*CloudMapClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, laneerror.Wrap(laneerror.RegistryUnavailable, err, "loading AWS config")
	}
	return &CloudMapClient{api: servicediscovery.NewFromConfig(cfg)}, nil
}

func (c *CloudMapClient) DiscoverInstances(ctx context.Context, namespace, service string) ([]Instance, error) {
	out, err := c.api.DiscoverInstances(ctx, &servicediscovery.DiscoverInstancesInput{
		NamespaceName: aws.String(namespace),
		ServiceName:   aws.String(service),
	})
	if err != nil {
		return nil, laneerror.Wrap(laneerror.RegistryUnavailable, err, "DiscoverInstances(%s.%s)", service, namespace)
	}

	instances := make([]Instance, 0, len(out.Instances))
	for _, inst := range out.Instances {
		if inst.HealthStatus == types.HealthStatusUnhealthy {
			continue
		}
		host := ""
		attrs := make(map[string]string, len(inst.Attributes))
		for k, v := range inst.Attributes {
			attrs[k] = v
		}
		if v, ok := attrs[AttrIPv4Canonical]; ok {
			host = v
		} else if v, ok := attrs[AttrIPv4Fallback]; ok {
			host = v
		}
		instances = append(instances, Instance{Host: host, Attributes: attrs})
	}
	return instances, nil
}

func (c *CloudMapClient) RegisterInstance(ctx context.Context, registryID, instanceID string, attrs map[string]string) error {
	_, err := c.api.RegisterInstance(ctx, &servicediscovery.RegisterInstanceInput{
		ServiceId:  aws.String(registryID),
		InstanceId: aws.String(instanceID),
		Attributes: attrs,
	})
	if err != nil {
		return laneerror.Wrap(laneerror.RegistryUnavailable, err, "RegisterInstance(%s/%s)", registryID, instanceID)
	}
	return nil
}
