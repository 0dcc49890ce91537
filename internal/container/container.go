package container

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/proteus-audio/proteus/internal/container/ebml"
)

// Container is an opened .prot file (or .mka alias) with its play settings
// already resolved.
type Container struct {
	Path     string
	Doc      *ebml.Document
	Settings *PlaySettings
	file     *os.File
}

// Open reads the container at path, locates its play_settings.json
// attachment, and parses it. A missing play_settings attachment is a
// configuration error that degrades to an empty settings object rather
// than failing Open outright, matching the error-handling policy.
func Open(path string) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("container: open %s: %w", path, err)
	}
	doc, err := ebml.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("container: parse %s: %w", path, err)
	}

	c := &Container{Path: path, Doc: doc, file: f}
	for _, att := range doc.Attachments {
		if att.Name == "play_settings.json" {
			ps, err := ParsePlaySettings(att.Data)
			if err != nil {
				c.Settings = &PlaySettings{Version: SchemaUnknown}
				break
			}
			c.Settings = ps
			break
		}
	}
	if c.Settings == nil {
		c.Settings = &PlaySettings{Version: SchemaUnknown}
	}
	return c, nil
}

// FindAttachment looks up an attachment by exact name.
func (c *Container) FindAttachment(name string) ([]byte, bool) {
	for _, a := range c.Doc.Attachments {
		if a.Name == name {
			return a.Data, true
		}
	}
	return nil, false
}

// TrackByNumber finds the Matroska track matching id, if present.
func (c *Container) TrackByNumber(id uint64) (ebml.TrackInfo, bool) {
	for _, t := range c.Doc.Tracks {
		if t.Number == id {
			return t, true
		}
	}
	return ebml.TrackInfo{}, false
}

// ResolveImpulseResponse interprets an IR spec string per the grammar in
// the external interfaces design: "attachment:<name>", "file:<path>", or a
// bare path resolved relative to the container's directory. If the path
// does not exist on disk, its filename is retried as an attachment name —
// the same best-effort filename-as-attachment fallback used elsewhere here.
func (c *Container) ResolveImpulseResponse(spec string) ([]byte, error) {
	switch {
	case strings.HasPrefix(spec, "attachment:"):
		name := strings.TrimPrefix(spec, "attachment:")
		if data, ok := c.FindAttachment(name); ok {
			return data, nil
		}
		return nil, fmt.Errorf("container: attachment %q not found", name)
	case strings.HasPrefix(spec, "file:"):
		return c.readResolvedPath(strings.TrimPrefix(spec, "file:"))
	default:
		return c.readResolvedPath(spec)
	}
}

func (c *Container) readResolvedPath(path string) ([]byte, error) {
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(filepath.Dir(c.Path), path)
	}
	if data, err := os.ReadFile(full); err == nil {
		return data, nil
	}
	if data, ok := c.FindAttachment(filepath.Base(path)); ok {
		return data, nil
	}
	return nil, fmt.Errorf("container: impulse response %q not found as file or attachment", path)
}

// Close releases the container's underlying file handle.
func (c *Container) Close() error {
	if c.file != nil {
		return c.file.Close()
	}
	return nil
}
