package content

import (
	"strings"

	"vexl-backend/internal/model"
)

const homePage = "home"

// Meta is the rendered head of a page.
type Meta struct {
	Title       string
	Description string
	Keywords    string
	Author      string
	Image       string
	Locale      string
	Lang        model.Language
	Dir         string
}

// Meta resolves the head metadata for a page key such as "studio". The
// home page uses the bare site title; other pages get a "| VEXL" suffix.
// Page keywords come before the default list.
func (c *Content) Meta(page string) Meta {
	pm, ok := c.SEO.Pages[page]
	if !ok {
		pm = PageMeta{Title: c.SEO.SiteTitle}
	}

	title := pm.Title + " | VEXL"
	if page == homePage || !ok {
		title = c.SEO.SiteTitle
	}

	keywords := append(append([]string(nil), pm.Keywords...), c.SEO.DefaultKeywords...)
	return Meta{
		Title:       title,
		Description: pm.Description,
		Keywords:    strings.Join(keywords, ", "),
		Author:      c.SEO.Author,
		Image:       c.SEO.Image,
		Locale:      c.Lang.Locale(),
		Lang:        c.Lang,
		Dir:         c.Lang.Dir(),
	}
}
