package model

import "github.com/pixil98/go-dbo/internal/dbo"

func registerWorld(reg *dbo.Registry) {
	reg.MustDefine(dbo.TypeDef{
		KeyType:       TypeArea,
		SetKey:        "areas",
		ChildrenTypes: []string{TypeRoom},
		Bases:         []string{dbo.TraitParent},
		Fields: map[string]*dbo.Field{
			"name":         dbo.NewField("", dbo.Required()),
			"desc":         dbo.NewField(""),
			"next_room_id": dbo.NewField(0),
		},
	})

	reg.MustDefine(dbo.TypeDef{
		ID: TypeExit,
		Fields: map[string]*dbo.Field{
			"direction":   dbo.NewField("", dbo.Required()),
			"destination": dbo.NewField(nil, dbo.Ref(TypeRoom)),
		},
	})

	reg.MustDefine(dbo.TypeDef{
		KeyType:    TypeRoom,
		ParentType: TypeArea,
		KeySort:    NumericKeySort,
		Bases:      []string{dbo.TraitChild},
		Fields: map[string]*dbo.Field{
			"title":    dbo.NewField(""),
			"desc":     dbo.NewField(""),
			"exits":    dbo.NewField([]any{}, dbo.Ref(TypeExit)),
			"articles": dbo.NewField([]any{}, dbo.Ref(TypeArticleInst)),
		},
	})

	reg.MustDefine(dbo.TypeDef{
		KeyType: TypeArticle,
		SetKey:  "articles",
		Bases:   []string{dbo.TraitKeyed, dbo.TraitOwned, dbo.TraitTemplate},
		Fields: map[string]*dbo.Field{
			"title": dbo.NewField(""),
			"desc":  dbo.NewField(""),
		},
	})

	reg.MustDefine(dbo.TypeDef{
		ID:         TypeArticleInst,
		Bases:      []string{dbo.TraitInstance},
		TemplateID: TypeArticle,
		Fields: map[string]*dbo.Field{
			"title":  dbo.TemplateField(""),
			"desc":   dbo.TemplateField(""),
			"weight": dbo.CopyField(1),
			"value":  dbo.CopyField(0),
		},
	})
}
