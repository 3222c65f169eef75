package kinds

import (
	"github.com/vcfg/vcfg/pkg/config"
)

// ServiceFileName is the manifest found at the root of every service.
const ServiceFileName = "service.yaml"

// FacadeModuleName is the module every service must expose.
const FacadeModuleName = "facade"

const serviceV0 = `
#Config: {
	version: 0
	name:    string & !=""
	modules: {
		facade!: #Module
		[string]: #Module
	}
}

#Module: {
	get: string & !=""
}
`

const serviceTemplate = `name: storage
modules:
  facade:
    get: ./modules/facade # path to a module directory or url to a .tar.gz archive
  sqlite:
    get: https://example.com/sqlite.tar.gz`

var serviceKind = &config.Kind[ServiceConfig]{
	Name:     "service",
	FileName: ServiceFileName,
	Schemas:  config.MustSchemaSet(serviceV0),
	Template: serviceTemplate,
}

// Service returns the service manifest kind.
func Service() *config.Kind[ServiceConfig] {
	return serviceKind
}

// ServiceConfig describes a service and the modules it is linked from.
type ServiceConfig struct {
	Version int                      `yaml:"version"`
	Name    string                   `yaml:"name" validate:"required"`
	Modules map[string]ServiceModule `yaml:"modules" validate:"required,dive"`
}

// ServiceModule says where a module comes from.
type ServiceModule struct {
	Get string `yaml:"get" validate:"required"`
}

// NewService returns a generator for a service manifest with only a facade module.
func NewService(name, facade string) func() (ServiceConfig, error) {
	return func() (ServiceConfig, error) {
		return ServiceConfig{
			Version: serviceKind.Latest(),
			Name:    name,
			Modules: map[string]ServiceModule{FacadeModuleName: {Get: facade}},
		}, nil
	}
}
