package kinds

import (
	"github.com/vcfg/vcfg/pkg/config"
)

// ModuleFileName is the manifest found at the root of every module.
const ModuleFileName = "module.yaml"

// Module types.
const (
	ModuleTypeRust     = "rust"
	ModuleTypeCompiled = "compiled"
)

// maxHeapSize is "<number><space?><unit?>" with K, Kb, Ki, KiB, M... G, Gb, Gi, GiB in any case.
const moduleV0 = `
#Config: {
	version:         0
	name:            string & !=""
	type?:           "rust" | "compiled"
	maxHeapSize?:    =~"^[0-9]+ ?(?i:k|kb|ki|kib|m|mb|mi|mib|g|gb|gi|gib)?$"
	loggerEnabled?:  bool
	loggingMask?:    int
	volumes?:        [string]: string
	preopenedFiles?: [...string]
	envs?:           [string]: string
	mountedBinaries?: [string]: string
}
`

const moduleTemplate = `name: facade
type: rust # rust modules are built from source; compiled modules point at a ready .wasm
maxHeapSize: "100" # 100 bytes
# maxHeapSize: 100K # 100 kilobytes
# maxHeapSize: 100 Ki # 100 kibibytes
# Units are case-insensitive: K, Kb, Ki, KiB, M, Mb, Mi, MiB, G, Gb, Gi, GiB. The limit is 4 GiB.
loggerEnabled: true # allow the module to use the SDK logger
loggingMask: 0 # bit mask of enabled logging targets
mountedBinaries:
  curl: /usr/bin/curl # host binaries the module may execute
preopenedFiles: # files and directories the module may access
  - ./dir
volumes: # aliases for accessible paths
  aliasForSomePath: ./some/path
envs: # environment variables visible to the module
  ENV1: arg1
  ENV2: arg2`

var moduleKind = &config.Kind[ModuleConfig]{
	Name:     "module",
	FileName: ModuleFileName,
	Schemas:  config.MustSchemaSet(moduleV0),
	Template: moduleTemplate,
}

// Module returns the module manifest kind.
func Module() *config.Kind[ModuleConfig] {
	return moduleKind
}

// ModuleConfig describes how a module is built and run.
type ModuleConfig struct {
	Version         int               `yaml:"version"`
	Name            string            `yaml:"name" validate:"required"`
	Type            string            `yaml:"type,omitempty" validate:"omitempty,oneof=rust compiled"`
	MaxHeapSize     string            `yaml:"maxHeapSize,omitempty"`
	LoggerEnabled   *bool             `yaml:"loggerEnabled,omitempty"`
	LoggingMask     *int              `yaml:"loggingMask,omitempty"`
	Volumes         map[string]string `yaml:"volumes,omitempty"`
	PreopenedFiles  []string          `yaml:"preopenedFiles,omitempty"`
	Envs            map[string]string `yaml:"envs,omitempty"`
	MountedBinaries map[string]string `yaml:"mountedBinaries,omitempty"`
}

// NewModule returns a generator for a rust module manifest.
func NewModule(name string) func() (ModuleConfig, error) {
	return func() (ModuleConfig, error) {
		return ModuleConfig{
			Version: moduleKind.Latest(),
			Name:    name,
			Type:    ModuleTypeRust,
		}, nil
	}
}
