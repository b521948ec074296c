package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/embydev/embytools/internal/platform"
	"github.com/embydev/embytools/internal/toolspec"
)

const (
	// MaxCatalogSize bounds the catalog file read from disk.
	MaxCatalogSize = 1 << 20

	// DefaultParseTimeout applies when the context carries no deadline.
	DefaultParseTimeout = 5 * time.Second
)

// CatalogParser evaluates Lua catalog files into tool specs.
//
// A catalog looks like:
//
//	embytools = {
//	  tools = {
//	    { name = "openocd", version = "0.12.0-7" },
//	    platform.is_linux and { name = "picotool", ... } or nil,
//	  },
//	}
//
// An entry whose name matches a tool of the base catalog overrides only the
// fields it sets. Any other entry is a new tool.
type CatalogParser struct {
	detector platform.Detector
	logger   Logger
}

// NewCatalogParser creates a parser. When detector is nil the platform
// table is not available to catalog code.
func NewCatalogParser(detector platform.Detector) *CatalogParser {
	return &CatalogParser{detector: detector, logger: NoopLogger()}
}

// WithLogger sets the logger and returns p.
func (p *CatalogParser) WithLogger(logger Logger) *CatalogParser {
	p.logger = LoggerOrNoop(logger)
	return p
}

// ParseError represents a catalog parsing error with a friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// ParseFile reads and evaluates the catalog at path on top of base.
func (p *CatalogParser) ParseFile(ctx context.Context, path string, base *toolspec.Catalog) (*toolspec.Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	if info.Size() > MaxCatalogSize {
		return nil, &ParseError{
			Message: "catalog file too large",
			Detail:  fmt.Sprintf("%s is %d bytes, limit is %d", path, info.Size(), MaxCatalogSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	p.logger.Debug("parsing catalog", "path", path, "bytes", len(data))
	return p.ParseString(ctx, string(data), base)
}

// ParseString evaluates Lua catalog code on top of base. A nil base is
// treated as an empty catalog.
func (p *CatalogParser) ParseString(ctx context.Context, code string, base *toolspec.Catalog) (*toolspec.Catalog, error) {
	if base == nil {
		empty, err := toolspec.NewCatalog()
		if err != nil {
			return nil, err
		}
		base = empty
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultParseTimeout)
		defer cancel()
	}

	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if p.detector != nil {
		desc, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, desc); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(code); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &ParseError{Message: "catalog evaluation aborted", Detail: ctxErr.Error()}
		}
		return nil, &ParseError{Message: "Lua syntax error", Detail: err.Error()}
	}

	specs, err := extractSpecs(L, base)
	if err != nil {
		return nil, err
	}

	merged, err := base.Merge(specs...)
	if err != nil {
		var verr *toolspec.ValidationError
		if errors.As(err, &verr) {
			return nil, &ParseError{Message: "invalid tool", Detail: err.Error()}
		}
		return nil, &ParseError{Message: "invalid catalog", Detail: err.Error()}
	}

	p.logger.Debug("catalog parsed", "tools", merged.Len(), "entries", len(specs))
	return merged, nil
}

// extractSpecs reads the global "embytools" table.
func extractSpecs(L *lua.LState, base *toolspec.Catalog) ([]toolspec.Spec, error) {
	root := L.GetGlobal("embytools")
	if root.Type() != lua.LTTable {
		return nil, &ParseError{
			Message: "missing or invalid 'embytools' table",
			Detail:  fmt.Sprintf("expected table, got %s", root.Type()),
		}
	}

	toolsVal := root.(*lua.LTable).RawGetString("tools")
	switch toolsVal.Type() {
	case lua.LTNil:
		return nil, nil
	case lua.LTTable:
	default:
		return nil, &ParseError{
			Message: "invalid 'tools' field",
			Detail:  fmt.Sprintf("expected table, got %s", toolsVal.Type()),
		}
	}

	var (
		specs []toolspec.Spec
		seen  = map[string]bool{}
		err   error
	)
	toolsVal.(*lua.LTable).ForEach(func(key, value lua.LValue) {
		if err != nil {
			return
		}
		// Skip nil values from platform conditionals like:
		// platform.is_linux and { ... } or nil
		if value.Type() == lua.LTNil {
			return
		}
		if value.Type() != lua.LTTable {
			err = &ParseError{
				Message: "invalid tool entry",
				Detail:  fmt.Sprintf("tools[%s]: expected table, got %s", key.String(), value.Type()),
			}
			return
		}

		var spec toolspec.Spec
		spec, err = extractSpec(value.(*lua.LTable), base)
		if err != nil {
			return
		}
		if seen[spec.Name] {
			err = &ParseError{Message: "duplicate tool entry", Detail: spec.Name}
			return
		}
		seen[spec.Name] = true
		specs = append(specs, spec)
	})
	if err != nil {
		return nil, err
	}
	return specs, nil
}

var specFields = map[string]lua.LValueType{
	"name":          lua.LTString,
	"description":   lua.LTString,
	"subdir":        lua.LTString,
	"resolution":    lua.LTString,
	"version":       lua.LTString,
	"url_template":  lua.LTString,
	"arch_names":    lua.LTTable,
	"owner":         lua.LTString,
	"repo":          lua.LTString,
	"asset_pattern": lua.LTString,
	"platforms":     lua.LTTable,
	"zip_root":      lua.LTString,
	"path_dirs":     lua.LTTable,
	"exec_dirs":     lua.LTTable,
	"executables":   lua.LTTable,
	"lib_dirs":      lua.LTTable,
	"markers":       lua.LTTable,
}

// extractSpec converts one tool table. Fields that are not set keep the
// value of the base tool with the same name.
func extractSpec(table *lua.LTable, base *toolspec.Catalog) (toolspec.Spec, error) {
	nameVal := table.RawGetString("name")
	if nameVal.Type() != lua.LTString || nameVal.String() == "" {
		return toolspec.Spec{}, &ParseError{Message: "invalid tool entry", Detail: "name is required"}
	}
	name := nameVal.String()

	fieldErr := func(field, msg string) error {
		return &ParseError{Message: "invalid tool entry", Detail: fmt.Sprintf("%s.%s: %s", name, field, msg)}
	}

	var unknown []string
	var typeErr error
	table.ForEach(func(key, value lua.LValue) {
		if typeErr != nil {
			return
		}
		if key.Type() != lua.LTString {
			typeErr = fieldErr(key.String(), "field names must be strings")
			return
		}
		want, ok := specFields[key.String()]
		if !ok {
			unknown = append(unknown, key.String())
			return
		}
		if value.Type() != want {
			typeErr = fieldErr(key.String(), fmt.Sprintf("expected %s, got %s", want, value.Type()))
		}
	})
	if typeErr != nil {
		return toolspec.Spec{}, typeErr
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return toolspec.Spec{}, fieldErr(strings.Join(unknown, ", "), "unknown field")
	}

	spec, ok := base.Lookup(name)
	if !ok {
		spec = toolspec.Spec{Name: name, Subdir: name, Resolution: toolspec.ResolutionStatic}
	}

	setString := func(field string, dst *string) {
		if v := table.RawGetString(field); v.Type() == lua.LTString {
			*dst = v.String()
		}
	}
	setString("description", &spec.Description)
	setString("subdir", &spec.Subdir)
	setString("version", &spec.Version)
	setString("url_template", &spec.URLTemplate)
	setString("owner", &spec.Owner)
	setString("repo", &spec.Repo)
	setString("asset_pattern", &spec.AssetPattern)
	setString("zip_root", &spec.ZipRoot)

	if v := table.RawGetString("resolution"); v.Type() == lua.LTString {
		spec.Resolution = toolspec.Resolution(v.String())
	}

	lists := []struct {
		field string
		dst   *[]string
	}{
		{"path_dirs", &spec.PathDirs},
		{"exec_dirs", &spec.ExecDirs},
		{"executables", &spec.Executables},
		{"lib_dirs", &spec.LibDirs},
	}
	for _, l := range lists {
		v := table.RawGetString(l.field)
		if v.Type() != lua.LTTable {
			continue
		}
		values, err := stringList(v.(*lua.LTable))
		if err != nil {
			return toolspec.Spec{}, fieldErr(l.field, err.Error())
		}
		*l.dst = values
	}

	if v := table.RawGetString("platforms"); v.Type() == lua.LTTable {
		values, err := stringList(v.(*lua.LTable))
		if err != nil {
			return toolspec.Spec{}, fieldErr("platforms", err.Error())
		}
		spec.Platforms = nil
		for _, s := range values {
			family, err := platform.ParseFamily(s)
			if err != nil {
				return toolspec.Spec{}, fieldErr("platforms", err.Error())
			}
			spec.Platforms = append(spec.Platforms, family)
		}
	}

	if v := table.RawGetString("arch_names"); v.Type() == lua.LTTable {
		values, err := stringMap(v.(*lua.LTable))
		if err != nil {
			return toolspec.Spec{}, fieldErr("arch_names", err.Error())
		}
		spec.ArchNames = make(map[platform.Arch]string, len(values))
		for k, token := range values {
			arch, err := platform.ParseArch(k)
			if err != nil {
				return toolspec.Spec{}, fieldErr("arch_names", err.Error())
			}
			spec.ArchNames[arch] = token
		}
	}

	if v := table.RawGetString("markers"); v.Type() == lua.LTTable {
		values, err := stringMap(v.(*lua.LTable))
		if err != nil {
			return toolspec.Spec{}, fieldErr("markers", err.Error())
		}
		spec.Markers = make(map[platform.Family]string, len(values))
		for k, marker := range values {
			family, err := platform.ParseFamily(k)
			if err != nil {
				return toolspec.Spec{}, fieldErr("markers", err.Error())
			}
			spec.Markers[family] = marker
		}
	}

	return spec, nil
}

// stringList reads an array of strings, skipping nils.
func stringList(table *lua.LTable) ([]string, error) {
	var (
		out []string
		err error
	)
	table.ForEach(func(key, value lua.LValue) {
		if err != nil || value.Type() == lua.LTNil {
			return
		}
		if key.Type() != lua.LTNumber {
			err = fmt.Errorf("expected a list, got key %q", key.String())
			return
		}
		if value.Type() != lua.LTString {
			err = fmt.Errorf("expected string, got %s", value.Type())
			return
		}
		out = append(out, value.String())
	})
	return out, err
}

// stringMap reads a string-keyed table of strings.
func stringMap(table *lua.LTable) (map[string]string, error) {
	out := map[string]string{}
	var err error
	table.ForEach(func(key, value lua.LValue) {
		if err != nil {
			return
		}
		if key.Type() != lua.LTString || value.Type() != lua.LTString {
			err = fmt.Errorf("expected string = string, got %s = %s", key.Type(), value.Type())
			return
		}
		out[key.String()] = value.String()
	})
	return out, err
}

// FormatError formats a ParseError for user display. In verbose mode the
// raw Lua error is shown, otherwise the stack traceback is trimmed.
func FormatError(err error, verbose bool) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}
