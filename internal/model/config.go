package model

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/pixil98/go-dbo/internal/datastore"
	"github.com/pixil98/go-dbo/internal/dbo"
)

func registerConfig(reg *dbo.Registry) {
	reg.MustDefine(dbo.TypeDef{
		ID: TypeSetting,
		Fields: map[string]*dbo.Field{
			"name":      dbo.NewField("", dbo.Required()),
			"value":     dbo.NewField(nil),
			"desc":      dbo.NewField(""),
			"default":   dbo.NewField(nil),
			"data_type": dbo.NewField(""),
			"min_value": dbo.NewField(nil),
			"max_value": dbo.NewField(nil),
			"step":      dbo.NewField(1),
			"export":    dbo.NewField(false),
		},
	})

	reg.MustDefine(dbo.TypeDef{
		KeyType:       TypeConfig,
		SetKey:        "configs",
		ChildrenTypes: []string{TypeSection},
		Bases:         []string{dbo.TraitParent},
	})

	reg.MustDefine(dbo.TypeDef{
		KeyType:    TypeSection,
		ParentType: TypeConfig,
		Bases:      []string{dbo.TraitChild},
		Fields: map[string]*dbo.Field{
			"desc":             dbo.NewField(""),
			"editor_constants": dbo.NewField(false),
			"settings":         dbo.NewField([]any{}, dbo.Ref(TypeSetting)),
		},
	})
}

// CreateConfig stores a config object and a section per entry of sections.
// Settings are dicts in the stored setting format. With setDefaults each
// setting's default is its value.
func CreateConfig(ctx context.Context, ds *datastore.Datastore, configID string, sections map[string][]map[string]any, setDefaults bool) (*dbo.Object, error) {
	seen := map[string][]string{}

	for _, name := range slices.Sorted(maps.Keys(sections)) {
		byName := map[string]map[string]any{}
		var order []string
		for _, raw := range sections[name] {
			setting := maps.Clone(raw)
			settingName, _ := setting["name"].(string)
			if setDefaults {
				setting["default"] = setting["value"]
			}
			if existing, ok := byName[settingName]; ok {
				slog.WarnContext(ctx, "setting overwritten", "section", name, "setting", settingName, "old", existing["value"], "new", setting["value"])
			} else {
				order = append(order, settingName)
				seen[settingName] = append(seen[settingName], name)
			}
			byName[settingName] = setting
		}

		settings := make([]any, 0, len(order))
		for _, n := range order {
			settings = append(settings, byName[n])
		}

		_, err := ds.CreateObject(ctx, TypeSection, map[string]any{
			"object_id": configID + ":" + name,
			"settings":  settings,
		})
		if err != nil {
			return nil, fmt.Errorf("creating config section %s: %w", name, err)
		}
	}

	for name, in := range seen {
		if len(in) > 1 {
			slog.WarnContext(ctx, "setting found in multiple sections", "setting", name, "sections", strings.Join(in, " "))
		}
	}

	return ds.CreateObject(ctx, TypeConfig, map[string]any{"object_id": configID})
}

// SectionValues maps section:name to the value of every setting of cfg.
func SectionValues(ctx context.Context, ds *datastore.Datastore, cfg *dbo.Object) (map[string]any, error) {
	sections, err := ds.Children(ctx, cfg, TypeSection)
	if err != nil {
		return nil, err
	}

	values := map[string]any{}
	for _, section := range sections {
		for _, setting := range settings(section) {
			values[section.ChildID()+":"+setting.GetString("name")] = setting.Get("value")
		}
	}
	return values, nil
}

// UpdateValue changes the value of one setting of cfg and saves its section.
func UpdateValue(ctx context.Context, ds *datastore.Datastore, cfg *dbo.Object, section string, name string, value any) error {
	sect, err := ds.LoadByID(ctx, TypeSection, cfg.ID()+":"+section)
	if err != nil {
		return fmt.Errorf("loading section %s: %w", section, err)
	}

	for _, setting := range settings(sect) {
		if setting.GetString("name") == name {
			setting.Set("value", value)
			return ds.SaveObject(ctx, sect, true)
		}
	}
	return fmt.Errorf("no setting found for %s:%s", section, name)
}

func settings(section *dbo.Object) []*dbo.Object {
	var out []*dbo.Object
	for _, v := range section.GetList("settings") {
		if s, ok := v.(*dbo.Object); ok && s != nil {
			out = append(out, s)
		}
	}
	return out
}
