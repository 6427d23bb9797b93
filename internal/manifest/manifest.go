// Package manifest defines the deployment manifest: deployable artifacts keyed by output
// name plus the ordered route table.
package manifest

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"git.home.luguber.info/inful/sitedeploy/internal/routes"
)

// ArtifactType discriminates artifacts in serialized form.
type ArtifactType string

const (
	TypeFile     ArtifactType = "file"
	TypeFunction ArtifactType = "function"
)

// Artifact is a deployable unit: a static file or a compute function.
type Artifact interface {
	ArtifactType() ArtifactType
}

// FileRef is a static file served verbatim.
type FileRef struct {
	FSPath      string `json:"fsPath"`
	Size        int64  `json:"size"`
	Mode        uint32 `json:"mode"`
	ContentType string `json:"contentType,omitempty"`
}

func (*FileRef) ArtifactType() ArtifactType { return TypeFile }

func (f *FileRef) MarshalJSON() ([]byte, error) {
	type alias FileRef
	return json.Marshal(struct {
		Type ArtifactType `json:"type"`
		*alias
	}{TypeFile, (*alias)(f)})
}

// FunctionKind names the three compute specializations.
type FunctionKind string

const (
	KindDynamic  FunctionKind = "dynamic"
	KindAPI      FunctionKind = "api"
	KindPageData FunctionKind = "page-data"
)

// Caching policies the platform applies per served path.
const (
	CachingNoStore              = "no-store"
	CachingStaleWhileRevalidate = "stale-while-revalidate"
)

// FunctionRoute is a path served by a function together with its caching policy.
type FunctionRoute struct {
	Path    string `json:"path"`
	Caching string `json:"caching"`
}

// Function is a compute artifact. Source is either a filesystem path to user code or a
// "template:<name>" reference to a built-in handler.
type Function struct {
	Kind    FunctionKind    `json:"kind"`
	Handler string          `json:"handler"`
	Runtime string          `json:"runtime"`
	Source  string          `json:"source"`
	Routes  []FunctionRoute `json:"routes,omitempty"`
}

func (*Function) ArtifactType() ArtifactType { return TypeFunction }

func (f *Function) MarshalJSON() ([]byte, error) {
	type alias Function
	return json.Marshal(struct {
		Type ArtifactType `json:"type"`
		*alias
	}{TypeFunction, (*alias)(f)})
}

// Output maps output keys to artifacts.
type Output map[string]Artifact

// UnmarshalJSON decodes artifacts by their "type" discriminator.
func (o *Output) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Output, len(raw))
	for key, msg := range raw {
		var head struct {
			Type ArtifactType `json:"type"`
		}
		if err := json.Unmarshal(msg, &head); err != nil {
			return fmt.Errorf("artifact %q: %w", key, err)
		}
		switch head.Type {
		case TypeFile:
			var f FileRef
			if err := json.Unmarshal(msg, &f); err != nil {
				return fmt.Errorf("artifact %q: %w", key, err)
			}
			out[key] = &f
		case TypeFunction:
			var f Function
			if err := json.Unmarshal(msg, &f); err != nil {
				return fmt.Errorf("artifact %q: %w", key, err)
			}
			out[key] = &f
		default:
			return fmt.Errorf("artifact %q: unknown type %q", key, head.Type)
		}
	}
	*o = out
	return nil
}

// OutputManifest is the sole product of an assembly: artifacts plus the ordered route table.
type OutputManifest struct {
	Output Output         `json:"output"`
	Routes []routes.Route `json:"routes"`
}

// Functions returns the function artifacts keyed by output name.
func (m *OutputManifest) Functions() map[string]*Function {
	out := make(map[string]*Function)
	for k, a := range m.Output {
		if fn, ok := a.(*Function); ok {
			out[k] = fn
		}
	}
	return out
}

// Hash is a deterministic digest of the manifest (map keys serialize sorted).
func (m *OutputManifest) Hash() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal for hash: %w", err)
	}
	return fmt.Sprintf("%x", sha256.Sum256(data)), nil
}

// Envelope wraps a manifest with the metadata of the build that produced it.
type Envelope struct {
	ID             string          `json:"id"`
	Project        string          `json:"project"`
	Revision       string          `json:"revision,omitempty"`
	Runtime        string          `json:"runtime"`
	PackageManager string          `json:"package_manager,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Hash           string          `json:"hash"`
	Manifest       *OutputManifest `json:"manifest"`
}

// ToJSON serializes the envelope.
func (e *Envelope) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}

// FromJSON deserializes an envelope.
func FromJSON(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return &e, nil
}
