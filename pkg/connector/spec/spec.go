// Package spec parses connection strings into Connection Specifications and
// resolves them against the backend registry.
//
// The grammar is scheme://[userinfo@][host[:port]][/path][?key=value&...].
// The scheme selects the backend; structural URI components are merged into
// the parameter mapping under reserved names (host, port, path, user,
// password); the reserved query key "collection" designates the sub-resource
// within the backend and is extracted rather than passed through.
package spec

import (
	"net/url"
	"sort"
	"strings"

	"github.com/evhart/preserve/pkg/connector/core"
	"github.com/evhart/preserve/pkg/connector/registry"
	"github.com/evhart/preserve/pkg/errors"
)

// Reserved parameter names produced from structural URI components.
const (
	ParamHost     = "host"
	ParamPort     = "port"
	ParamPath     = "path"
	ParamUser     = "user"
	ParamPassword = "password"

	// ParamCollection is the reserved query key naming the sub-resource.
	ParamCollection = "collection"
)

// Spec is a parsed Connection Specification: a backend name, a parameter
// mapping, and an optional sub-resource (table/collection) name.
type Spec struct {
	Backend    string
	Params     map[string]string
	Collection string
}

// Parse parses a connection string into a Spec. Malformed input fails with
// an invalid_uri error before any backend factory could be invoked; an
// unregistered scheme is only detected later, by Open or registry.Lookup,
// so that parsing itself needs no registry.
func Parse(rawURI string) (*Spec, error) {
	u, err := url.Parse(rawURI)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInvalidURI, "cannot parse connection string")
	}

	if u.Scheme == "" {
		return nil, errors.Newf(errors.ErrorTypeInvalidURI, "connection string %q has no scheme", rawURI)
	}

	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInvalidURI, "cannot parse query parameters").
			WithDetail("uri", rawURI)
	}

	s := &Spec{
		Backend: u.Scheme,
		Params:  make(map[string]string),
	}

	// url.Parse treats scheme://name as a host. Backends that expect a
	// filesystem path (shelf, sqlite) recombine host and path via FilePath.
	if host := u.Hostname(); host != "" {
		s.Params[ParamHost] = host
	}
	if port := u.Port(); port != "" {
		s.Params[ParamPort] = port
	}
	// With an authority present the path is relative to it; with an empty
	// authority (scheme:///abs/path) the leading slash is part of the path.
	path := u.Path
	if u.Host != "" {
		path = strings.TrimPrefix(path, "/")
	}
	if path != "" {
		s.Params[ParamPath] = path
	}
	if u.User != nil {
		if user := u.User.Username(); user != "" {
			s.Params[ParamUser] = user
		}
		if password, ok := u.User.Password(); ok {
			s.Params[ParamPassword] = password
		}
	}

	for key, values := range query {
		if len(values) == 0 {
			continue
		}
		// Last occurrence wins, matching flat parameter mappings.
		value := values[len(values)-1]
		if key == ParamCollection {
			s.Collection = value
			continue
		}
		s.Params[key] = value
	}

	return s, nil
}

// String re-serializes the specification into a connection string. Parsing
// the result yields an equivalent backend name, parameter mapping, and
// sub-resource, up to parameter ordering.
func (s *Spec) String() string {
	u := url.URL{Scheme: s.Backend}
	if host, port := s.Params[ParamHost], s.Params[ParamPort]; host != "" || port != "" {
		u.Host = host + portSuffix(s.Params)
	}

	query := url.Values{}
	for key, value := range s.Params {
		switch key {
		case ParamHost, ParamPort:
			// Emitted as the authority above.
		case ParamPath:
			if strings.HasPrefix(value, "/") {
				u.Path = value
			} else {
				u.Path = "/" + value
			}
		case ParamUser:
			if password, ok := s.Params[ParamPassword]; ok {
				u.User = url.UserPassword(value, password)
			} else {
				u.User = url.User(value)
			}
		case ParamPassword:
			// Emitted with the user.
		default:
			query.Set(key, value)
		}
	}
	if s.Collection != "" {
		query.Set(ParamCollection, s.Collection)
	}
	u.RawQuery = query.Encode()

	return u.String()
}

// FilePath recombines the host and path parameters into a filesystem path
// for file-backed backends. A URI of the form scheme://dir/file yields
// host=dir path=file, scheme:///abs/file yields path=/abs/file, and
// scheme://file yields only a host; parameter-call construction usually
// supplies path alone.
func FilePath(params map[string]string) string {
	host, path := params[ParamHost], params[ParamPath]
	switch {
	case host != "" && path != "":
		return host + "/" + path
	case host != "":
		return host
	default:
		return path
	}
}

func portSuffix(params map[string]string) string {
	if port, ok := params[ParamPort]; ok {
		return ":" + port
	}
	return ""
}

// Validate checks the parameter mapping against a registered descriptor:
// required parameters must be present and unknown parameters are rejected so
// that typos fail loudly instead of being silently ignored.
func (s *Spec) Validate(desc *registry.Descriptor) error {
	for name, param := range desc.Params {
		if !param.Required {
			continue
		}
		if _, ok := s.Params[name]; !ok {
			return errors.Newf(errors.ErrorTypeConfig, "backend %s requires parameter %q", desc.Name, name)
		}
	}

	unknown := make([]string, 0)
	for name := range s.Params {
		if _, ok := desc.Params[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return errors.Newf(errors.ErrorTypeConfig, "backend %s does not recognize parameters %v", desc.Name, unknown)
	}
	return nil
}

// Open resolves the specification against a registry and constructs the
// connector. Parameters are validated against the descriptor's schema before
// the factory runs; the sub-resource name is handed to the factory under the
// reserved collection parameter.
func (s *Spec) Open(r *registry.Registry) (core.Connector, error) {
	desc, err := r.Lookup(s.Backend)
	if err != nil {
		return nil, err
	}

	if err := s.Validate(desc); err != nil {
		return nil, err
	}

	params := s.Params
	if s.Collection != "" {
		params = make(map[string]string, len(s.Params)+1)
		for k, v := range s.Params {
			params[k] = v
		}
		params[ParamCollection] = s.Collection
	}

	conn, err := desc.Factory(params)
	if err != nil {
		errType := errors.TypeOf(err)
		if errType == errors.ErrorTypeInternal {
			errType = errors.ErrorTypeBackend
		}
		return nil, errors.Wrap(err, errType, "failed to open backend "+s.Backend)
	}
	return conn, nil
}
