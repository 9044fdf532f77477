package server

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"github.com/cptaffe/acme-mdstyle/engine"
	"github.com/cptaffe/acme-mdstyle/style"
)

// DefaultLayer is the compositor layer name styles are published under.
const DefaultLayer = "markdown"

// Config holds the values parsed from the styles file.
type Config struct {
	// Palette is the default markdown palette with any entries from the
	// styles file replacing those of the same name.
	Palette []style.PaletteEntry

	HideSyntax     bool
	AsyncThreshold int
	Workers        int

	// Suffixes selects the windows to style by file name.
	Suffixes []string
	// Layer is the compositor layer name.
	Layer string
}

// DefaultConfig returns the configuration used without a styles file.
func DefaultConfig() Config {
	return Config{
		Palette:        style.DefaultPalette(),
		AsyncThreshold: engine.DefaultAsyncThreshold,
		Workers:        engine.DefaultWorkers,
		Suffixes:       []string{".md", ".markdown"},
		Layer:          DefaultLayer,
	}
}

// Matches reports whether a window named name should be styled.
func (c Config) Matches(name string) bool {
	for _, s := range c.Suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// ParseConfig parses a styles file on top of DefaultConfig.  The file uses
// the acme-styles palette format (":name fg=#rrggbb bold ...") plus
// "set key value" lines.  Layer-order lines ("@name") belong to the
// compositor and are ignored.  Bad lines are skipped; the returned error
// reports all of them.
func ParseConfig(content string) (Config, error) {
	cfg := DefaultConfig()
	var errs error
	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "@") {
			continue
		}
		switch {
		case strings.HasPrefix(line, ":"):
			e, ok := parsePaletteLine(line[1:])
			if !ok {
				errs = multierr.Append(errs, fmt.Errorf("line %d: empty palette entry", i+1))
				continue
			}
			cfg.setPalette(e)
		case strings.HasPrefix(line, "set "):
			if err := cfg.set(strings.Fields(line[4:])); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("line %d: %w", i+1, err))
			}
		default:
			errs = multierr.Append(errs, fmt.Errorf("line %d: unrecognised %q", i+1, line))
		}
	}
	return cfg, errs
}

func (c *Config) setPalette(e style.PaletteEntry) {
	for i := range c.Palette {
		if c.Palette[i].Name == e.Name {
			c.Palette[i] = e
			return
		}
	}
	c.Palette = append(c.Palette, e)
}

func (c *Config) set(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("set: want key and value")
	}
	key, val := args[0], args[1]
	switch key {
	case "hide-syntax":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("hide-syntax: %w", err)
		}
		c.HideSyntax = b
	case "async-threshold":
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			return fmt.Errorf("async-threshold: bad value %q", val)
		}
		c.AsyncThreshold = n
	case "workers":
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			return fmt.Errorf("workers: bad value %q", val)
		}
		c.Workers = n
	case "suffix":
		c.Suffixes = args[1:]
	case "layer":
		c.Layer = val
	default:
		return fmt.Errorf("set: unknown key %q", key)
	}
	return nil
}

// ParseStyleContent parses a complete style buffer (palette + run lines).
func ParseStyleContent(content string) ([]style.PaletteEntry, []style.StyleRun) {
	var palette []style.PaletteEntry
	var runs []style.StyleRun
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, ":") {
			if e, ok := parsePaletteLine(line[1:]); ok {
				palette = append(palette, e)
			}
		} else {
			if r, ok := parseRunLine(line); ok {
				runs = append(runs, r)
			}
		}
	}
	return palette, runs
}

// parsePaletteLine parses "name [prop ...]" (after the leading ':' is stripped).
func parsePaletteLine(line string) (style.PaletteEntry, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return style.PaletteEntry{}, false
	}
	e := style.PaletteEntry{Name: fields[0]}
	for _, tok := range fields[1:] {
		switch {
		case tok == "bold":
			e.Bold = true
		case tok == "italic":
			e.Italic = true
		case tok == "underline":
			e.Underline = true
		case strings.HasPrefix(tok, "font="):
			e.FontName = tok[5:]
		case strings.HasPrefix(tok, "fg="):
			e.FG = tok[3:]
		case strings.HasPrefix(tok, "bg="):
			e.BG = tok[3:]
		}
	}
	return e, true
}

// parseRunLine parses "start length name".
func parseRunLine(line string) (style.StyleRun, bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return style.StyleRun{}, false
	}
	start, err := strconv.Atoi(fields[0])
	if err != nil {
		return style.StyleRun{}, false
	}
	length, err := strconv.Atoi(fields[1])
	if err != nil || length <= 0 {
		return style.StyleRun{}, false
	}
	return style.StyleRun{Name: fields[2], Start: start, End: start + length}, true
}
