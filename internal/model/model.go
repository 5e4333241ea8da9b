package model

import (
	"cmp"
	"strconv"
	"strings"

	"github.com/pixil98/go-dbo/internal/dbo"
)

const (
	TypeUser        = "user"
	TypePlayer      = "player"
	TypeBuilder     = "builder"
	TypeConfig      = "config"
	TypeSection     = "c_sect"
	TypeSetting     = "setting"
	TypeArea        = "area"
	TypeRoom        = "room"
	TypeExit        = "exit"
	TypeArticle     = "article"
	TypeArticleInst = "article_inst"
)

// Register defines every persistent type the server stores.
func Register(reg *dbo.Registry) {
	registerAccounts(reg)
	registerConfig(reg)
	registerWorld(reg)
}

// NumericKeySort orders child ids by their numeric child portion. Ids that
// are not numeric sort after numeric ones, alphabetically.
func NumericKeySort(a, b string) int {
	an, aErr := childNumber(a)
	bn, bErr := childNumber(b)
	switch {
	case aErr == nil && bErr == nil:
		return cmp.Compare(an, bn)
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}
	return strings.Compare(a, b)
}

func childNumber(id string) (int, error) {
	_, child, _ := strings.Cut(id, ":")
	return strconv.Atoi(child)
}
