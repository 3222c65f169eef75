// Package kinds declares the configuration kinds of the tool: the project
// manifest, service and module manifests, the project and user secrets
// stores, and the deployment record.
//
// Each kind is a *config.Kind value carrying its CUE schema history and the
// migrations between versions. Constructors such as NewProject build the
// default document written when a file does not exist yet.
package kinds
