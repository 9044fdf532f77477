// Package layer is a client for the acme-styles compositor.
//
// The compositor is a 9P file server that keeps named layers of style runs
// per acme window and composes them into the window's style file.  Each
// tool owns one layer:
//
//	sl, err := layer.Open(winID, "markdown")
//	if err != nil { ... }
//	defer sl.Delete()
//	sl.Write(style.Format(palette, runs))
//	sl.WriteAt(q0, q1, style.Format(nil, relRuns))
package layer

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"9fans.net/go/plan9"
	"9fans.net/go/plan9/client"
)

// Service is the name the compositor posts in the namespace.
const Service = "acme-styles"

// StyleLayer is a client handle for one named layer.  A single 9P
// connection is shared by every StyleLayer in the process and re-established
// on first use after any error.
type StyleLayer struct {
	WinID   int
	LayerID int
	name    string // for re-allocation after compositor restart
}

var (
	connMu sync.Mutex
	fsys   *client.Fsys
)

// currentFsys returns the cached connection, connecting on first use or
// after a reset.
func currentFsys() (*client.Fsys, error) {
	connMu.Lock()
	defer connMu.Unlock()
	if fsys != nil {
		return fsys, nil
	}
	fs, err := client.MountService(Service)
	if err != nil {
		return nil, fmt.Errorf("mount %s: %w", Service, err)
	}
	fsys = fs
	return fs, nil
}

func resetFsys() {
	connMu.Lock()
	fsys = nil
	connMu.Unlock()
}

// Open returns the named layer on winID, creating it if needed.
func Open(winID int, name string) (*StyleLayer, error) {
	fs, err := currentFsys()
	if err != nil {
		return nil, err
	}
	layID, err := FindOrCreate(fs, winID, name)
	if err != nil {
		resetFsys()
		return nil, err
	}
	return &StyleLayer{WinID: winID, LayerID: layID, name: name}, nil
}

// Write replaces the layer with text in the acme-styles wire format:
// palette lines (":name fg=#rrggbb bold") then run lines
// ("start length name").
func (sl *StyleLayer) Write(text string) error {
	return sl.write(nil, text)
}

// WriteAt replaces the runs of the layer inside [q0, q1) with text, whose
// run offsets are relative to q0.  Palette lines in text are merged by name.
func (sl *StyleLayer) WriteAt(q0, q1 int, text string) error {
	return sl.write([]int{q0, q1}, text)
}

func (sl *StyleLayer) write(addr []int, text string) error {
	if sl == nil {
		return nil
	}
	err := sl.writeOnce(addr, text)
	if err == nil {
		return nil
	}
	// Layer gone: the compositor restarted.  Re-allocate and retry once.
	resetFsys()
	fs, err := currentFsys()
	if err != nil {
		return err
	}
	newID, err := FindOrCreate(fs, sl.WinID, sl.name)
	if err != nil {
		resetFsys()
		return fmt.Errorf("re-alloc layer: %w", err)
	}
	sl.LayerID = newID
	if err := sl.writeOnce(addr, text); err != nil {
		resetFsys()
		return err
	}
	return nil
}

// writeOnce sets the pending address, if any, then writes the style file.
// The compositor captures the address when style is opened and applies the
// write at clunk.
func (sl *StyleLayer) writeOnce(addr []int, text string) error {
	fs, err := currentFsys()
	if err != nil {
		return err
	}
	if addr != nil {
		afid, err := fs.Open(sl.path("addr"), plan9.OWRITE)
		if err != nil {
			return fmt.Errorf("open addr: %w", err)
		}
		_, err = fmt.Fprintf(afid, "%d %d", addr[0], addr[1])
		afid.Close()
		if err != nil {
			return fmt.Errorf("write addr: %w", err)
		}
	}
	fid, err := fs.Open(sl.path("style"), plan9.OWRITE)
	if err != nil {
		return fmt.Errorf("open style: %w", err)
	}
	defer fid.Close()
	if _, err := fid.Write([]byte(text)); err != nil {
		return fmt.Errorf("write style: %w", err)
	}
	return nil
}

func (sl *StyleLayer) path(file string) string {
	return fmt.Sprintf("%d/layers/%d/%s", sl.WinID, sl.LayerID, file)
}

// Clear removes all runs from the layer.  Best-effort.
func (sl *StyleLayer) Clear() {
	if sl == nil {
		return
	}
	sl.ctl("clear\n")
}

// Delete removes the layer from the compositor so its styles do not linger
// after the tool exits.  Best-effort.
func (sl *StyleLayer) Delete() {
	if sl == nil {
		return
	}
	sl.ctl("delete\n")
}

func (sl *StyleLayer) ctl(cmd string) {
	fs, err := currentFsys()
	if err != nil {
		return
	}
	fid, err := fs.Open(sl.path("ctl"), plan9.OWRITE)
	if err != nil {
		resetFsys()
		return
	}
	if _, err := fid.Write([]byte(cmd)); err != nil {
		resetFsys()
	}
	fid.Close()
}

// Find looks up a layer by name in the window's layers/index.
func Find(fs *client.Fsys, winID int, name string) (int, bool) {
	fid, err := fs.Open(fmt.Sprintf("%d/layers/index", winID), plan9.OREAD)
	if err != nil {
		return 0, false
	}
	data, err := io.ReadAll(fid)
	fid.Close()
	if err != nil {
		return 0, false
	}
	return parseIndex(string(data), name)
}

// parseIndex finds name in the "id name" lines of a layers/index file.
func parseIndex(index, name string) (int, bool) {
	for _, line := range strings.Split(index, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[1] == name {
			if id, err := strconv.Atoi(fields[0]); err == nil {
				return id, true
			}
		}
	}
	return 0, false
}

// FindOrCreate returns the ID of the named layer, creating and naming it
// if it does not already exist.
func FindOrCreate(fs *client.Fsys, winID int, name string) (int, error) {
	if id, ok := Find(fs, winID, name); ok {
		return id, nil
	}

	newFid, err := fs.Open(fmt.Sprintf("%d/layers/new", winID), plan9.OREAD)
	if err != nil {
		return 0, fmt.Errorf("open layers/new: %w", err)
	}
	data, err := io.ReadAll(newFid)
	newFid.Close()
	if err != nil {
		return 0, fmt.Errorf("read layers/new: %w", err)
	}
	layID, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse layer id %q: %w", string(data), err)
	}

	nameFid, err := fs.Open(fmt.Sprintf("%d/layers/%d/name", winID, layID), plan9.OWRITE)
	if err != nil {
		return 0, fmt.Errorf("open layer name: %w", err)
	}
	nameFid.Write([]byte(name)) //nolint:errcheck
	nameFid.Close()

	return layID, nil
}
