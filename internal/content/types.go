package content

import "vexl-backend/internal/model"

// Content is the full copy of the site in one language.
type Content struct {
	Lang         model.Language         `yaml:"lang"`
	UI           UI                     `yaml:"ui"`
	Nav          Nav                    `yaml:"nav"`
	Hero         Hero                   `yaml:"hero"`
	About        About                  `yaml:"about"`
	Philosophy   Philosophy             `yaml:"philosophy"`
	Impact       Impact                 `yaml:"impact"`
	Services     Services               `yaml:"services"`
	Studio       Studio                 `yaml:"studio"`
	Alliances    Alliances              `yaml:"alliances"`
	Testimonials Testimonials           `yaml:"testimonials"`
	CaseStudy    CaseStudy              `yaml:"case_study"`
	Academy      Academy                `yaml:"academy"`
	Vetting      Vetting                `yaml:"vetting"`
	RnD          RnD                    `yaml:"rnd"`
	Legal        Legal                  `yaml:"legal"`
	Footer       Footer                 `yaml:"footer"`
	Contact      Contact                `yaml:"contact"`
	NotFound     NotFound               `yaml:"not_found"`
	SEO          SEO                    `yaml:"seo"`
	Assistant    *model.AssistantScript `yaml:"assistant"`
}

type UI struct {
	LanguageToggle string `yaml:"language_toggle"`
	ThemeToggle    string `yaml:"theme_toggle"`
	OpenAssistant  string `yaml:"open_assistant"`
	CloseAssistant string `yaml:"close_assistant"`
	Online         string `yaml:"online"`
}

type Nav struct {
	Vision    string `yaml:"vision"`
	Studio    string `yaml:"studio"`
	Academy   string `yaml:"academy"`
	Community string `yaml:"community"`
	Contact   string `yaml:"contact"`
}

type Hero struct {
	Headline     string `yaml:"headline"`
	Subline      string `yaml:"subline"`
	CTAPrimary   string `yaml:"cta_primary"`
	CTASecondary string `yaml:"cta_secondary"`
}

type Stat struct {
	Value string `yaml:"value"`
	Label string `yaml:"label"`
}

type About struct {
	Label       string `yaml:"label"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Stats       []Stat `yaml:"stats"`
}

type Pillar struct {
	Title string `yaml:"title"`
	Desc  string `yaml:"desc"`
}

type Philosophy struct {
	Title   string   `yaml:"title"`
	Intro   string   `yaml:"intro"`
	Pillars []Pillar `yaml:"pillars"`
}

type ImpactFront struct {
	Title string `yaml:"title"`
	Desc  string `yaml:"desc"`
	Stat  string `yaml:"stat"`
}

type Impact struct {
	Title      string      `yaml:"title"`
	Intro      string      `yaml:"intro"`
	Academic   ImpactFront `yaml:"academic"`
	Commercial ImpactFront `yaml:"commercial"`
	CaseStudy  Pillar      `yaml:"case_study"`
}

type AcademicService struct {
	Title  string   `yaml:"title"`
	Status string   `yaml:"status"`
	Desc   string   `yaml:"desc"`
	Items  []string `yaml:"items"`
	CTA    string   `yaml:"cta"`
}

type CorporateService struct {
	Title  string `yaml:"title"`
	Status string `yaml:"status"`
	Desc   string `yaml:"desc"`
}

type Services struct {
	SectionTitle string           `yaml:"section_title"`
	Academic     AcademicService  `yaml:"academic"`
	Corporate    CorporateService `yaml:"corporate"`
}

type FAQItem struct {
	Q string `yaml:"q"`
	A string `yaml:"a"`
}

type FAQ struct {
	Title string    `yaml:"title"`
	Items []FAQItem `yaml:"items"`
}

type Studio struct {
	AcademicFAQ  FAQ `yaml:"academic_faq"`
	CorporateFAQ FAQ `yaml:"corporate_faq"`
}

type Logo struct {
	Name string `yaml:"name"`
	// Type is "university" or "corporate".
	Type string `yaml:"type"`
}

type Alliances struct {
	Title string `yaml:"title"`
	Logos []Logo `yaml:"logos"`
}

type Testimonial struct {
	Name   string  `yaml:"name"`
	Role   string  `yaml:"role"`
	Rating float64 `yaml:"rating"`
	Text   string  `yaml:"text"`
	// Lang is "ar", "en" or "mix".
	Lang string `yaml:"lang"`
}

type Testimonials struct {
	SectionTitle string        `yaml:"section_title"`
	Title        string        `yaml:"title"`
	Subtitle     string        `yaml:"subtitle"`
	Items        []Testimonial `yaml:"items"`
}

type TitledText struct {
	Title string `yaml:"title"`
	Text  string `yaml:"text"`
}

type CaseDetails struct {
	Problem  TitledText `yaml:"problem"`
	Solution TitledText `yaml:"solution"`
	Result   TitledText `yaml:"result"`
}

type CaseStudy struct {
	Label   string      `yaml:"label"`
	Title   string      `yaml:"title"`
	Desc    string      `yaml:"desc"`
	Metric  string      `yaml:"metric"`
	CTA     string      `yaml:"cta"`
	Image   string      `yaml:"image"`
	Details CaseDetails `yaml:"details"`
}

type Academy struct {
	Title    string `yaml:"title"`
	Subtitle string `yaml:"subtitle"`
	CTA      string `yaml:"cta"`
	Tagline  string `yaml:"tagline"`
	FAQ      FAQ    `yaml:"faq"`
}

type VettingFields struct {
	Name       string `yaml:"name"`
	Email      string `yaml:"email"`
	University string `yaml:"university"`
	Project    string `yaml:"project"`
	Why        string `yaml:"why"`
	Skill      string `yaml:"skill"`
}

type Vetting struct {
	Title        string        `yaml:"title"`
	Subtitle     string        `yaml:"subtitle"`
	Fields       VettingFields `yaml:"fields"`
	SkillOptions []string      `yaml:"skill_options"`
	Submit       string        `yaml:"submit"`
	Sending      string        `yaml:"sending"`
	SuccessTitle string        `yaml:"success_title"`
	SuccessDesc  string        `yaml:"success_desc"`
	ErrorTitle   string        `yaml:"error_title"`
	ErrorDesc    string        `yaml:"error_desc"`
}

// HasSkill reports whether s is one of the offered skill levels.
func (v Vetting) HasSkill(s string) bool {
	for _, opt := range v.SkillOptions {
		if opt == s {
			return true
		}
	}
	return false
}

type RnD struct {
	Title    string `yaml:"title"`
	Desc     string `yaml:"desc"`
	Status   string `yaml:"status"`
	Redacted string `yaml:"redacted"`
}

type LegalSection struct {
	Heading string   `yaml:"heading"`
	Content []string `yaml:"content"`
}

type LegalDoc struct {
	Title       string         `yaml:"title"`
	LastUpdated string         `yaml:"last_updated"`
	Sections    []LegalSection `yaml:"sections"`
}

type Legal struct {
	Privacy LegalDoc `yaml:"privacy"`
	Terms   LegalDoc `yaml:"terms"`
}

type Link struct {
	Label string `yaml:"label"`
	Href  string `yaml:"href"`
}

type Footer struct {
	Phrase    string `yaml:"phrase"`
	Copyright string `yaml:"copyright"`
	Explore   []Link `yaml:"explore"`
	Company   []Link `yaml:"company"`
	Legal     []Link `yaml:"legal"`
	Social    []Link `yaml:"social"`
}

type ContactFields struct {
	Name    string `yaml:"name"`
	Email   string `yaml:"email"`
	Org     string `yaml:"org"`
	Message string `yaml:"message"`
}

type Contact struct {
	Label        string        `yaml:"label"`
	Heading      string        `yaml:"heading"`
	Intro        string        `yaml:"intro"`
	EmailLabel   string        `yaml:"email_label"`
	Email        string        `yaml:"email"`
	BaseLabel    string        `yaml:"base_label"`
	Base         string        `yaml:"base"`
	Coordinates  string        `yaml:"coordinates"`
	FormTitle    string        `yaml:"form_title"`
	Fields       ContactFields `yaml:"fields"`
	Submit       string        `yaml:"submit"`
	Sending      string        `yaml:"sending"`
	SuccessTitle string        `yaml:"success_title"`
	SuccessDesc  string        `yaml:"success_desc"`
	ErrorTitle   string        `yaml:"error_title"`
	ErrorDesc    string        `yaml:"error_desc"`
	Secure       string        `yaml:"secure"`
}

type NotFound struct {
	Code    string `yaml:"code"`
	Message string `yaml:"message"`
	CTA     string `yaml:"cta"`
}

// PageMeta is the head metadata of one page.
type PageMeta struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Keywords    []string `yaml:"keywords"`
}

type SEO struct {
	SiteTitle       string              `yaml:"site_title"`
	Author          string              `yaml:"author"`
	Image           string              `yaml:"image"`
	DefaultKeywords []string            `yaml:"default_keywords"`
	Pages           map[string]PageMeta `yaml:"pages"`
}
