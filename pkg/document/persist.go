package document

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/chazu/fasten/pkg/attach"
	"github.com/chazu/fasten/pkg/fastener"
	"github.com/chazu/fasten/pkg/kernel"
	"github.com/google/uuid"
)

// SchemaVersion is written by Save. Version 1 files predate match_outer,
// import_name, object_in_component and uuid.
const SchemaVersion = 2

type fileJSON struct {
	Version   int            `json:"version"`
	Bodies    []*Body        `json:"bodies"`
	Fasteners []fastenerJSON `json:"fasteners"`
}

type fastenerJSON struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Diameter   string `json:"diameter"`
	Length     string `json:"length,omitempty"`
	Thread     bool   `json:"thread,omitempty"`
	MatchOuter *bool  `json:"match_outer,omitempty"`

	BaseObject *attach.TargetRef `json:"base_object,omitempty"`
	Invert     bool              `json:"invert,omitempty"`
	Offset     float64           `json:"offset,omitempty"`
	Placement  *kernel.Placement `json:"placement,omitempty"`

	ImportName        string `json:"import_name,omitempty"`
	ObjectInComponent string `json:"object_in_component,omitempty"`
	UUID              string `json:"uuid,omitempty"`
}

// LoadOptions control how missing fields of older files are synthesized.
type LoadOptions struct {
	// MatchOuterDefault is used for fasteners saved without match_outer.
	MatchOuterDefault bool
}

// Save writes the document as indented JSON.
func (d *Document) Save(w io.Writer) error {
	f := fileJSON{
		Version: SchemaVersion,
		Bodies:  d.Bodies(),
	}
	for _, inst := range d.fasteners {
		p := inst.Props
		mo := p.MatchOuter
		fj := fastenerJSON{
			Name:              inst.Name,
			Type:              p.Type,
			Diameter:          p.Diameter,
			Length:            p.Length,
			Thread:            p.Thread,
			MatchOuter:        &mo,
			BaseObject:        p.BaseObject,
			Invert:            p.Invert,
			Offset:            p.Offset,
			ImportName:        p.ImportName,
			ObjectInComponent: p.ObjectInComponent,
			UUID:              p.UUID,
		}
		if inst.Placed {
			pl := inst.Placement
			fj.Placement = &pl
		}
		f.Fasteners = append(f.Fasteners, fj)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	return nil
}

// Load reads a document written by Save or by an older schema version.
// Fields missing from older versions are synthesized: match_outer from
// opts, import_name from the object name, uuid freshly generated.
// Fasteners still need a restoring pass (Restore) before recompute.
func Load(r io.Reader, opts LoadOptions) (*Document, error) {
	var f fileJSON
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	if f.Version > SchemaVersion {
		return nil, fmt.Errorf("document version %d is newer than supported version %d", f.Version, SchemaVersion)
	}

	d := New()
	for _, b := range f.Bodies {
		if b == nil {
			continue
		}
		nb, err := d.AddBody(b.Name)
		if err != nil {
			return nil, err
		}
		for _, el := range b.Elements() {
			f := b.Features[el]
			if f == nil {
				return nil, fmt.Errorf("body %s: element %q has no geometry", b.Name, el)
			}
			if err := nb.AddFeature(el, *f); err != nil {
				return nil, err
			}
		}
	}

	for _, fj := range f.Fasteners {
		inst := fastener.New(fj.Name, fj.Type)
		p := &inst.Props
		p.Diameter = fj.Diameter
		p.Length = fj.Length
		p.Thread = fj.Thread
		p.MatchOuter = opts.MatchOuterDefault
		if fj.MatchOuter != nil {
			p.MatchOuter = *fj.MatchOuter
		}
		p.BaseObject = fj.BaseObject
		p.Invert = fj.Invert
		p.Offset = fj.Offset
		p.ObjectInComponent = fj.ObjectInComponent

		p.ImportName = fj.ImportName
		if p.ImportName == "" {
			p.ImportName = fj.Name
		}
		p.UUID = fj.UUID
		if p.UUID == "" {
			p.UUID = uuid.NewString()
		}

		if fj.Placement != nil {
			inst.Placement = *fj.Placement
			inst.Placed = true
		}
		if err := d.AddFastener(inst); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// SaveFile writes the document to path.
func (d *Document) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := d.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFile reads a document from path.
func LoadFile(path string, opts LoadOptions) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f, opts)
}
