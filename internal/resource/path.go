package resource

import (
	"net/url"

	"github.com/seantiz/tatool/internal/model"
)

// ResolvePath returns the location of the resource described by d.
// External descriptors resolve to ResourcePath+ResourceName (or
// ResourceName alone); all others to the project resource endpoint for
// the given run mode, with token appended.
func ResolvePath(d model.ResourceDescriptor, mode, token string) string {
	if d.External() {
		if d.ResourcePath != "" {
			return d.ResourcePath + d.ResourceName
		}
		return d.ResourceName
	}
	return "/" + mode + "/resources/" + d.Project.Access + "/" + d.Project.Name + "/" +
		d.ResourceType + "/" + d.ResourceName + "?token=" + token
}

// redact strips the token query parameter so URLs can be logged.
func redact(u *url.URL) string {
	q := u.Query()
	if !q.Has("token") {
		return u.String()
	}
	q.Set("token", "REDACTED")
	c := *u
	c.RawQuery = q.Encode()
	return c.String()
}
