package kinds

import (
	"errors"
	"fmt"
	"sort"

	"github.com/vcfg/vcfg/pkg/config"
)

// ProjectFileName is the project manifest.
const ProjectFileName = "project.yaml"

// ErrServiceExists is returned when a service name is already taken.
var ErrServiceExists = errors.New("service already exists")

const projectV0 = `
#Config: {
	version: 0
	services?: [string]: #Service
}

#Service: {
	get: string & !=""
	deploy?: [...#Deploy]
}

#Deploy: {
	deployId: string & !=""
}
`

const projectTemplate = `services:
  facade:
    get: ./services/facade # path to a service directory or url to a .tar.gz archive
    deploy:
      - deployId: default # name used to tell apart deployments of the same service`

var projectKind = &config.Kind[ProjectConfig]{
	Name:     "project",
	FileName: ProjectFileName,
	Schemas:  config.MustSchemaSet(projectV0),
	Template: projectTemplate,
}

// Project returns the project manifest kind.
func Project() *config.Kind[ProjectConfig] {
	return projectKind
}

// ProjectConfig lists the services of a project.
type ProjectConfig struct {
	Version  int                       `yaml:"version"`
	Services map[string]ProjectService `yaml:"services,omitempty" validate:"dive"`
}

// ProjectService says where a service comes from and how it is deployed.
type ProjectService struct {
	Get    string          `yaml:"get" validate:"required"`
	Deploy []ServiceDeploy `yaml:"deploy,omitempty" validate:"dive"`
}

// ServiceDeploy names one deployment of a service.
type ServiceDeploy struct {
	DeployID string `yaml:"deployId" validate:"required"`
}

// NewProject returns an empty project manifest.
func NewProject() (ProjectConfig, error) {
	return ProjectConfig{Version: projectKind.Latest()}, nil
}

// AddService registers a service fetched from get with a single default deployment.
func (p *ProjectConfig) AddService(name, get string) error {
	if name == "" {
		return fmt.Errorf("service name is required")
	}
	if _, ok := p.Services[name]; ok {
		return fmt.Errorf("%w: %s", ErrServiceExists, name)
	}
	if p.Services == nil {
		p.Services = make(map[string]ProjectService)
	}
	p.Services[name] = ProjectService{
		Get:    get,
		Deploy: []ServiceDeploy{{DeployID: DefaultDeployID}},
	}
	return nil
}

// ServiceNames returns the service names in sorted order.
func (p *ProjectConfig) ServiceNames() []string {
	names := make([]string, 0, len(p.Services))
	for name := range p.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
