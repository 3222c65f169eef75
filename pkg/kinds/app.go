package kinds

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vcfg/vcfg/pkg/config"
)

// AppFileName is the deployment record written after services are deployed.
const AppFileName = "app.yaml"

// DefaultDeployID groups deployments that predate named deploys.
const DefaultDeployID = "default"

// Networks a deployment record may name instead of listing relay addresses.
const (
	NetworkKras    = "kras"
	NetworkTestnet = "testnet"
	NetworkStage   = "stage"
)

// Networks lists every known network name.
var Networks = []string{NetworkKras, NetworkTestnet, NetworkStage}

const appV0 = `
#Config: {
	version:      0
	services:     [...#Service]
	keyPairName:  string
	timestamp:    string
	knownRelays?: null | [...string]
}

#Service: {
	name:        string
	peerId:      string
	serviceId:   string
	blueprintId: string
}
`

const appV1 = `
#Network: "kras" | "testnet" | "stage"

#Config: {
	version: 1
	services: [string]: [...#Deployed]
	keyPairName:  string
	timestamp:    string
	knownRelays?: null | [...string]
	relays?:      null | #Network | [...string]
}

#Deployed: {
	peerId:      string
	serviceId:   string
	blueprintId: string
}
`

const appV2 = `
#Network: "kras" | "testnet" | "stage"

#Config: {
	version: 2
	services: [string]: [string]: [...#Deployed]
	keyPairName: string
	timestamp:   string
	relays?:     null | #Network | [...string]
}

#Deployed: {
	peerId:      string
	serviceId:   string
	blueprintId: string
}
`

const appV3 = `
#Network: "kras" | "testnet" | "stage"

#Config: {
	version: 3
	services: [string]: [string]: [...#Deployed]
	timestamp: string
	relays?:   null | #Network | [...string]
}

#Deployed: {
	peerId:      string
	serviceId:   string
	blueprintId: string
	keyPairName: string
}
`

//go:embed scripts/app_keypair_per_deploy.star
var appKeyPairPerDeploy string

var appKind = &config.Kind[AppConfig]{
	Name:     "app",
	FileName: AppFileName,
	Schemas:  config.MustSchemaSet(appV0, appV1, appV2, appV3),
	Migrations: []config.Migration{
		{Description: "group deployed services by name", Apply: groupServicesByName},
		{Description: "nest services under deploy ids and fold knownRelays into relays", Apply: nestDeployIDs},
		config.MustStarlarkMigration("move keyPairName into deployed services", appKeyPairPerDeploy),
	},
}

// App returns the deployment record kind.
func App() *config.Kind[AppConfig] {
	return appKind
}

// AppConfig is the latest (v3) deployment record.
type AppConfig struct {
	Version   int         `yaml:"version"`
	Services  AppServices `yaml:"services" validate:"dive,dive,dive"`
	Timestamp string      `yaml:"timestamp" validate:"required"`
	Relays    *Relays     `yaml:"relays,omitempty"`
}

// AppServices maps service name to deploy id to the deployed instances.
type AppServices map[string]map[string][]DeployedService

// DeployedService is one deployed instance of a service.
type DeployedService struct {
	PeerID      string `yaml:"peerId" validate:"required"`
	ServiceID   string `yaml:"serviceId" validate:"required"`
	BlueprintID string `yaml:"blueprintId" validate:"required"`
	KeyPairName string `yaml:"keyPairName" validate:"required"`
}

// NewApp returns a record of services deployed now.
func NewApp(services AppServices, relays *Relays) AppConfig {
	if services == nil {
		services = AppServices{}
	}
	return AppConfig{
		Version:   appKind.Latest(),
		Services:  services,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Relays:    relays,
	}
}

// Add records a deployed instance under name and deployID.
func (s AppServices) Add(name, deployID string, d DeployedService) {
	deploys, ok := s[name]
	if !ok {
		deploys = map[string][]DeployedService{}
		s[name] = deploys
	}
	deploys[deployID] = append(deploys[deployID], d)
}

// Relays is either a known network name or an explicit list of relay addresses.
type Relays struct {
	Network string
	Addrs   []string
}

// NetworkRelays selects the relays of a known network.
func NetworkRelays(network string) *Relays {
	return &Relays{Network: network}
}

// AddrRelays uses an explicit relay list.
func AddrRelays(addrs ...string) *Relays {
	return &Relays{Addrs: addrs}
}

// MarshalYAML writes the network name as a scalar and addresses as a sequence.
func (r Relays) MarshalYAML() (any, error) {
	if r.Network != "" {
		return r.Network, nil
	}
	if r.Addrs == nil {
		return []string{}, nil
	}
	return r.Addrs, nil
}

// UnmarshalYAML accepts either form.
func (r *Relays) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&r.Network)
	case yaml.SequenceNode:
		return node.Decode(&r.Addrs)
	default:
		return fmt.Errorf("line %d: relays must be a network name or a list of addresses", node.Line)
	}
}

func (r Relays) String() string {
	if r.Network != "" {
		return r.Network
	}
	return fmt.Sprint(r.Addrs)
}

// groupServicesByName turns the v0 service list into v1 lists keyed by name,
// keeping the order in which instances were listed.
func groupServicesByName(doc map[string]any) (map[string]any, error) {
	list, ok := doc["services"].([]any)
	if !ok {
		return nil, fmt.Errorf("services is %T, expected a list", doc["services"])
	}

	grouped := make(map[string]any)
	for i, item := range list {
		svc, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("services.%d is %T, expected a mapping", i, item)
		}
		name, ok := svc["name"].(string)
		if !ok {
			return nil, fmt.Errorf("services.%d.name is missing", i)
		}
		delete(svc, "name")
		instances, _ := grouped[name].([]any)
		grouped[name] = append(instances, svc)
	}

	doc["services"] = grouped
	doc["version"] = 1
	return doc, nil
}

// nestDeployIDs moves the instances of every v1 service under the default
// deploy id and merges knownRelays into relays. A null or empty relay list is
// dropped.
func nestDeployIDs(doc map[string]any) (map[string]any, error) {
	services, ok := doc["services"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("services is %T, expected a mapping", doc["services"])
	}
	for name, instances := range services {
		services[name] = map[string]any{DefaultDeployID: instances}
	}

	known, _ := doc["knownRelays"].([]any)
	delete(doc, "knownRelays")

	switch relays := doc["relays"].(type) {
	case string:
	case []any:
		doc["relays"] = append(relays, known...)
	case nil:
		doc["relays"] = known
	default:
		return nil, fmt.Errorf("relays is %T, expected a network name or a list", relays)
	}
	if list, ok := doc["relays"].([]any); ok && len(list) == 0 {
		delete(doc, "relays")
	}

	doc["version"] = 2
	return doc, nil
}
