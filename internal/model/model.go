package model

import (
	"encoding/json"
	"time"
)

type LayerKind string

const (
	LayerKindImage   LayerKind = "image"
	LayerKindVideo   LayerKind = "video"
	LayerKindGIF     LayerKind = "gif"
	LayerKindText    LayerKind = "text"
	LayerKindShape   LayerKind = "shape"
	LayerKindPalette LayerKind = "palette"
)

// EntryKind is the flattened-stack kind of a layer: media layers live in Board.Layers,
// everything else in Board.Objects.
type EntryKind string

const (
	EntryImage  EntryKind = "image"
	EntryObject EntryKind = "object"
)

// Entry returns the flattened-stack kind for k. Unknown kinds are treated as images.
func (k LayerKind) Entry() EntryKind {
	switch k {
	case LayerKindText, LayerKindShape, LayerKindPalette:
		return EntryObject
	default:
		return EntryImage
	}
}

func (k LayerKind) Valid() bool {
	switch k {
	case LayerKindImage, LayerKindVideo, LayerKindGIF, LayerKindText, LayerKindShape, LayerKindPalette:
		return true
	}
	return false
}

// Filters are the CSS-style visual filters applied to a media layer.
type Filters struct {
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Saturation float64 `json:"saturation"`
	Hue        float64 `json:"hue"`
	Blur       float64 `json:"blur"`
	Grayscale  float64 `json:"grayscale"`
	Invert     float64 `json:"invert"`
	Opacity    float64 `json:"opacity"`
}

func DefaultFilters() Filters {
	return Filters{Brightness: 100, Contrast: 100, Saturation: 100, Opacity: 100}
}

type Layer struct {
	ID       string    `json:"id"`
	Kind     LayerKind `json:"kind"`
	Name     string    `json:"name,omitempty"`
	Src      string    `json:"src,omitempty"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Width    float64   `json:"width"`
	Height   float64   `json:"height"`
	Rotation float64   `json:"rotation"`
	Visible  bool      `json:"visible"`
	ZIndex   int       `json:"zIndex"`

	// Media state.
	CurrentTime  float64  `json:"currentTime,omitempty"`
	CurrentFrame int      `json:"currentFrame,omitempty"`
	Filters      *Filters `json:"filters,omitempty"`

	// Object state.
	Text   string   `json:"text,omitempty"`
	Fill   string   `json:"fill,omitempty"`
	Shape  string   `json:"shape,omitempty"`
	Colors []string `json:"colors,omitempty"`
}

// UnmarshalJSON applies load defaults: a layer without a visible field is visible.
func (l *Layer) UnmarshalJSON(b []byte) error {
	type wire Layer
	w := wire{Visible: true}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.Kind == "" {
		w.Kind = LayerKindImage
	}
	*l = Layer(w)
	return nil
}

// Group references layers by identity. It never owns them.
type Group struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	LayerIDs  []string `json:"layerIds"`
	ObjectIDs []string `json:"objectIds"`
	Collapsed bool     `json:"collapsed"`
}

func (g Group) Empty() bool { return len(g.LayerIDs) == 0 && len(g.ObjectIDs) == 0 }

func (g Group) Has(id string) bool {
	for _, x := range g.LayerIDs {
		if x == id {
			return true
		}
	}
	for _, x := range g.ObjectIDs {
		if x == id {
			return true
		}
	}
	return false
}

// MemberIDs returns image members followed by object members.
func (g Group) MemberIDs() []string {
	out := make([]string, 0, len(g.LayerIDs)+len(g.ObjectIDs))
	out = append(out, g.LayerIDs...)
	out = append(out, g.ObjectIDs...)
	return out
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ViewState struct {
	Pan  Point   `json:"pan"`
	Zoom float64 `json:"zoom"`
}

// Stroke is drawn-path data owned by the drawing tool. It is carried through unchanged.
type Stroke struct {
	ID     string    `json:"id"`
	Points []Point   `json:"points"`
	Color  string    `json:"color"`
	Width  float64   `json:"width"`
	Time   time.Time `json:"time,omitempty"`
}

type Asset struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Src  string `json:"src"`
}

type Board struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	BgColor   string    `json:"bgColor"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	ViewState ViewState `json:"viewState"`
	Layers    []Layer   `json:"layers"`
	Objects   []Layer   `json:"objects"`
	Groups    []Group   `json:"groups"`
	Strokes   []Stroke  `json:"strokes,omitempty"`
	Assets    []Asset   `json:"assets,omitempty"`
	Thumbnail string    `json:"thumbnail,omitempty"`
}

// UnmarshalJSON applies load defaults for fields older boards do not carry.
func (b *Board) UnmarshalJSON(data []byte) error {
	type wire Board
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Layers == nil {
		w.Layers = []Layer{}
	}
	if w.Objects == nil {
		w.Objects = []Layer{}
	}
	if w.Groups == nil {
		w.Groups = []Group{}
	}
	if w.ViewState.Zoom == 0 {
		w.ViewState.Zoom = 1
	}
	*b = Board(w)
	return nil
}

// Clone returns a deep copy safe to hand to another goroutine.
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}
	out := *b
	out.Layers = cloneLayers(b.Layers)
	out.Objects = cloneLayers(b.Objects)
	out.Groups = cloneGroups(b.Groups)
	if b.Strokes != nil {
		out.Strokes = make([]Stroke, len(b.Strokes))
		for i, s := range b.Strokes {
			s.Points = append([]Point{}, s.Points...)
			out.Strokes[i] = s
		}
	}
	if b.Assets != nil {
		out.Assets = append([]Asset{}, b.Assets...)
	}
	return &out
}

func cloneGroups(in []Group) []Group {
	out := make([]Group, len(in))
	for i, g := range in {
		g.LayerIDs = append([]string{}, g.LayerIDs...)
		g.ObjectIDs = append([]string{}, g.ObjectIDs...)
		out[i] = g
	}
	return out
}

func cloneLayers(in []Layer) []Layer {
	out := make([]Layer, len(in))
	for i, l := range in {
		if l.Filters != nil {
			f := *l.Filters
			l.Filters = &f
		}
		if l.Colors != nil {
			l.Colors = append([]string{}, l.Colors...)
		}
		out[i] = l
	}
	return out
}

// BoardMeta is the listing view of a board.
type BoardMeta struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	BgColor   string    `json:"bgColor"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Thumbnail string    `json:"thumbnail,omitempty"`
}

func (b *Board) Meta() BoardMeta {
	return BoardMeta{
		ID:        b.ID,
		Name:      b.Name,
		BgColor:   b.BgColor,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
		Thumbnail: b.Thumbnail,
	}
}

// BoardUpdate is a partial write. Nil fields are left unchanged.
type BoardUpdate struct {
	Name      *string    `json:"name,omitempty"`
	BgColor   *string    `json:"bgColor,omitempty"`
	ViewState *ViewState `json:"viewState,omitempty"`
	Layers    *[]Layer   `json:"layers,omitempty"`
	Objects   *[]Layer   `json:"objects,omitempty"`
	Groups    *[]Group   `json:"groups,omitempty"`
	Strokes   *[]Stroke  `json:"strokes,omitempty"`
	Assets    *[]Asset   `json:"assets,omitempty"`
	Thumbnail *string    `json:"thumbnail,omitempty"`
}

// FullUpdate returns an update that overwrites every persisted field with b's values.
func FullUpdate(b *Board) BoardUpdate {
	c := b.Clone()
	return BoardUpdate{
		Name:      &c.Name,
		BgColor:   &c.BgColor,
		ViewState: &c.ViewState,
		Layers:    &c.Layers,
		Objects:   &c.Objects,
		Groups:    &c.Groups,
		Strokes:   &c.Strokes,
		Assets:    &c.Assets,
		Thumbnail: &c.Thumbnail,
	}
}

// Apply writes the non-nil fields of u into b and bumps UpdatedAt.
func (u BoardUpdate) Apply(b *Board, now time.Time) {
	if u.Name != nil {
		b.Name = *u.Name
	}
	if u.BgColor != nil {
		b.BgColor = *u.BgColor
	}
	if u.ViewState != nil {
		b.ViewState = *u.ViewState
	}
	if u.Layers != nil {
		b.Layers = cloneLayers(*u.Layers)
	}
	if u.Objects != nil {
		b.Objects = cloneLayers(*u.Objects)
	}
	if u.Groups != nil {
		b.Groups = cloneGroups(*u.Groups)
	}
	if u.Strokes != nil {
		b.Strokes = append([]Stroke{}, (*u.Strokes)...)
	}
	if u.Assets != nil {
		b.Assets = append([]Asset{}, (*u.Assets)...)
	}
	if u.Thumbnail != nil {
		b.Thumbnail = *u.Thumbnail
	}
	b.UpdatedAt = now
}
