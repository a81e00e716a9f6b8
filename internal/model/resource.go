package model

// Project access kinds. Only AccessExternal changes how a descriptor is
// resolved; every other value is served by the host application.
const (
	AccessExternal = "external"
	AccessInternal = "internal"
	AccessPrivate  = "private"
	AccessPublic   = "public"
)

// Project identifies the owner of a resource.
type Project struct {
	Access string `json:"access"`
	Name   string `json:"name"`
}

// ResourceDescriptor describes what to fetch and where. For external
// projects ResourceName (optionally prefixed by ResourcePath) is a URL.
type ResourceDescriptor struct {
	Project      Project `json:"project"`
	ResourcePath string  `json:"resourcePath,omitempty"`
	ResourceType string  `json:"resourceType"`
	ResourceName string  `json:"resourceName"`
}

// External reports whether the descriptor is self-contained.
func (d ResourceDescriptor) External() bool {
	return d.Project.Access == AccessExternal
}
