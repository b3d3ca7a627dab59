package pdfkit

import (
	"bytes"
	"errors"
	"fmt"
	"crypto/sha256"
	"encoding/hex"
	"image"
	"regexp"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/image/draw"
)

// defaultBox is US Letter, used when a page declares no MediaBox.
var defaultBox = box{urx: 612, ury: 792}

// Document is an open PDF accepting overlays. Overlays are buffered per page
// and written behind a q/Q pair so the page's own graphics state cannot leak
// into them.
type Document struct {
	ctx     *model.Context
	pages   map[int]*overlay
	opacity map[string]graphicsState
	nextRes int
}

type graphicsState struct {
	name string
	ref  types.IndirectRef
}

type overlay struct {
	dict     types.Dict
	box      box
	ops      bytes.Buffer
	xobjects map[string]types.IndirectRef
	states   map[string]types.IndirectRef
}

// Open parses data for editing.
func Open(data []byte) (*Document, error) {
	ctx, err := api.ReadContext(bytes.NewReader(data), configuration())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	return &Document{
		ctx:     ctx,
		pages:   make(map[int]*overlay),
		opacity: make(map[string]graphicsState),
	}, nil
}

func (d *Document) PageCount() int {
	return d.ctx.PageCount
}

// PageSize returns the visible width and height of page in points.
func (d *Document) PageSize(page int) (float64, float64, error) {
	o, err := d.overlay(page)
	if err != nil {
		return 0, 0, err
	}
	return o.box.width(), o.box.height(), nil
}

func (d *Document) overlay(page int) (*overlay, error) {
	if o, ok := d.pages[page]; ok {
		return o, nil
	}
	if page < 1 || page > d.ctx.PageCount {
		return nil, fmt.Errorf("page %d out of range 1..%d", page, d.ctx.PageCount)
	}
	dict, _, _, err := d.ctx.PageDict(page, true)
	if err != nil {
		return nil, fmt.Errorf("loading page %d: %w", page, err)
	}
	if dict == nil {
		return nil, fmt.Errorf("page %d has no dictionary", page)
	}
	o := &overlay{
		dict:     dict,
		box:      d.pageBox(dict),
		xobjects: make(map[string]types.IndirectRef),
		states:   make(map[string]types.IndirectRef),
	}
	d.pages[page] = o
	return o, nil
}

// pageBox resolves the CropBox, falling back to the MediaBox, walking up the
// page tree for inherited values.
func (d *Document) pageBox(dict types.Dict) box {
	for _, key := range []string{"CropBox", "MediaBox"} {
		if b, ok := d.inheritedBox(dict, key); ok {
			return b
		}
	}
	return defaultBox
}

func (d *Document) inheritedBox(dict types.Dict, key string) (box, bool) {
	for depth := 0; dict != nil && depth < 32; depth++ {
		if obj, found := dict.Find(key); found {
			arr, err := d.ctx.DereferenceArray(obj)
			if err == nil && len(arr) == 4 {
				var v [4]float64
				ok := true
				for i, o := range arr {
					o, err := d.ctx.Dereference(o)
					if err != nil {
						ok = false
						break
					}
					if v[i], ok = number(o); !ok {
						break
					}
				}
				if ok {
					b := box{llx: min(v[0], v[2]), lly: min(v[1], v[3]), urx: max(v[0], v[2]), ury: max(v[1], v[3])}
					if b.width() > 0 && b.height() > 0 {
						return b, true
					}
				}
			}
		}
		parent, found := dict.Find("Parent")
		if !found {
			break
		}
		next, err := d.ctx.DereferenceDict(parent)
		if err != nil {
			break
		}
		dict = next
	}
	return box{}, false
}

func number(o types.Object) (float64, bool) {
	switch v := o.(type) {
	case types.Integer:
		return float64(v), true
	case types.Float:
		return float64(v), true
	}
	return 0, false
}

func (d *Document) resourceName(prefix string) string {
	d.nextRes++
	return fmt.Sprintf("%s%d", prefix, d.nextRes)
}

// InsertImage draws img stretched over r.
func (d *Document) InsertImage(page int, r Rect, img image.Image) error {
	o, err := d.overlay(page)
	if err != nil {
		return err
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 || r.Width() <= 0 || r.Height() <= 0 {
		return nil
	}
	ref, err := d.imageXObject(img)
	if err != nil {
		return fmt.Errorf("embedding image on page %d: %w", page, err)
	}
	name := d.resourceName("ImPdfe")
	o.xobjects[name] = ref

	x, y := o.box.toUser(Point{X: r.X0, Y: r.Y1})
	fmt.Fprintf(&o.ops, "q %s 0 0 %s %s %s cm /%s Do Q\n",
		num(r.Width()), num(r.Height()), num(x), num(y), name)
	return nil
}

// DrawPolyline strokes a connected path through pts.
func (d *Document) DrawPolyline(page int, pts []Point, st StrokeStyle) error {
	if len(pts) < 2 {
		return nil
	}
	o, err := d.overlay(page)
	if err != nil {
		return err
	}
	gs, err := d.opacityState(o, st.Opacity)
	if err != nil {
		return fmt.Errorf("creating opacity state on page %d: %w", page, err)
	}

	var sb strings.Builder
	sb.WriteString("q ")
	if gs != "" {
		fmt.Fprintf(&sb, "/%s gs ", gs)
	}
	fmt.Fprintf(&sb, "%s %s %s RG %s w 1 J 1 j\n",
		num(st.Color.R), num(st.Color.G), num(st.Color.B), num(st.Width))
	for i, p := range pts {
		x, y := o.box.toUser(p)
		op := "l"
		if i == 0 {
			op = "m"
		}
		fmt.Fprintf(&sb, "%s %s %s\n", num(x), num(y), op)
	}
	sb.WriteString("S Q\n")
	o.ops.WriteString(sb.String())
	return nil
}

// opacityState returns the ExtGState name for alpha, or "" when alpha is 1.
func (d *Document) opacityState(o *overlay, alpha float64) (string, error) {
	if alpha >= 1 || alpha < 0 {
		return "", nil
	}
	key := num(alpha)
	gs, ok := d.opacity[key]
	if !ok {
		dict := types.Dict{
			"Type": types.Name("ExtGState"),
			"CA":   types.Float(alpha),
			"ca":   types.Float(alpha),
		}
		ref, err := d.ctx.IndRefForNewObject(dict)
		if err != nil {
			return "", err
		}
		gs = graphicsState{name: d.resourceName("GSPdfe"), ref: *ref}
		d.opacity[key] = gs
	}
	o.states[gs.name] = gs.ref
	return gs.name, nil
}

// imageXObject embeds img as a DeviceRGB image with an SMask when it has
// transparency.
func (d *Document) imageXObject(img image.Image) (types.IndirectRef, error) {
	b := img.Bounds()
	nrgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)

	w, h := b.Dx(), b.Dy()
	rgb := make([]byte, 0, w*h*3)
	alpha := make([]byte, 0, w*h)
	opaque := true
	for i := 0; i < len(nrgba.Pix); i += 4 {
		rgb = append(rgb, nrgba.Pix[i], nrgba.Pix[i+1], nrgba.Pix[i+2])
		a := nrgba.Pix[i+3]
		if a != 0xff {
			opaque = false
		}
		alpha = append(alpha, a)
	}

	sd, err := d.imageStream(rgb, w, h, "DeviceRGB")
	if err != nil {
		return types.IndirectRef{}, err
	}
	if !opaque {
		mask, err := d.imageStream(alpha, w, h, "DeviceGray")
		if err != nil {
			return types.IndirectRef{}, err
		}
		maskRef, err := d.ctx.IndRefForNewObject(*mask)
		if err != nil {
			return types.IndirectRef{}, err
		}
		sd.Dict["SMask"] = *maskRef
	}
	ref, err := d.ctx.IndRefForNewObject(*sd)
	if err != nil {
		return types.IndirectRef{}, err
	}
	return *ref, nil
}

func (d *Document) imageStream(samples []byte, w, h int, colorSpace string) (*types.StreamDict, error) {
	sd, err := d.ctx.NewStreamDictForBuf(samples)
	if err != nil {
		return nil, err
	}
	sd.Dict["Type"] = types.Name("XObject")
	sd.Dict["Subtype"] = types.Name("Image")
	sd.Dict["Width"] = types.Integer(w)
	sd.Dict["Height"] = types.Integer(h)
	sd.Dict["ColorSpace"] = types.Name(colorSpace)
	sd.Dict["BitsPerComponent"] = types.Integer(8)
	if err := sd.Encode(); err != nil {
		return nil, err
	}
	return sd, nil
}

func (d *Document) contentStream(content string) (types.IndirectRef, error) {
	sd, err := d.ctx.NewStreamDictForBuf([]byte(content))
	if err != nil {
		return types.IndirectRef{}, err
	}
	if err := sd.Encode(); err != nil {
		return types.IndirectRef{}, err
	}
	ref, err := d.ctx.IndRefForNewObject(*sd)
	if err != nil {
		return types.IndirectRef{}, err
	}
	return *ref, nil
}

// commit attaches the buffered overlay of one page to its dictionary.
func (d *Document) commit(o *overlay) error {
	if o.ops.Len() == 0 {
		return nil
	}
	res, err := d.subDict(o.dict, "Resources")
	if err != nil {
		return err
	}
	if len(o.xobjects) > 0 {
		xo, err := d.subDict(res, "XObject")
		if err != nil {
			return err
		}
		for name, ref := range o.xobjects {
			xo[name] = ref
		}
	}
	if len(o.states) > 0 {
		gs, err := d.subDict(res, "ExtGState")
		if err != nil {
			return err
		}
		for name, ref := range o.states {
			gs[name] = ref
		}
	}

	open, err := d.contentStream("q\n")
	if err != nil {
		return err
	}
	closing, err := d.contentStream("\nQ\n" + o.ops.String())
	if err != nil {
		return err
	}

	contents := types.Array{open}
	if obj, found := o.dict.Find("Contents"); found {
		existing, err := d.ctx.Dereference(obj)
		if err != nil {
			return fmt.Errorf("resolving page contents: %w", err)
		}
		switch v := existing.(type) {
		case types.Array:
			contents = append(contents, v...)
		case types.StreamDict:
			contents = append(contents, obj)
		case nil:
		default:
			return errors.New("unsupported page contents")
		}
	}
	contents = append(contents, closing)
	o.dict["Contents"] = contents
	return nil
}

// subDict returns parent[key] as a dictionary, creating it when missing.
func (d *Document) subDict(parent types.Dict, key string) (types.Dict, error) {
	obj, found := parent.Find(key)
	if !found || obj == nil {
		sub := types.Dict{}
		parent[key] = sub
		return sub, nil
	}
	sub, err := d.ctx.DereferenceDict(obj)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", key, err)
	}
	if sub == nil {
		sub = types.Dict{}
		parent[key] = sub
	}
	return sub, nil
}

// Export writes the document with all overlays applied.
func (d *Document) Export() ([]byte, error) {
	pages := make([]int, 0, len(d.pages))
	for p := range d.pages {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	for _, p := range pages {
		if err := d.commit(d.pages[p]); err != nil {
			return nil, fmt.Errorf("committing page %d: %w", p, err)
		}
		d.pages[p].ops.Reset()
	}

	// A plain xref table keeps the trailer and info dictionary uncompressed
	// for pinning.
	d.ctx.WriteObjectStream = false
	d.ctx.WriteXRefStream = false

	var out bytes.Buffer
	if err := api.WriteContext(d.ctx, &out); err != nil {
		return nil, fmt.Errorf("writing pdf: %w", err)
	}
	return pinVolatile(out.Bytes()), nil
}

var (
	infoDate   = regexp.MustCompile(`/(?:CreationDate|ModDate)\s*\((D:\d{14}[+\-]\d{2}'\d{2}')\)`)
	trailerID  = regexp.MustCompile(`/ID\s*\[\s*<([0-9A-Fa-f]*)>\s*<([0-9A-Fa-f]*)>\s*\]`)
	pinnedDate = []byte("D:19700101000000+00'00'")
)

// pinVolatile replaces the write time pdfcpu stamps into the info dictionary
// and the time based file identifier, so equal documents export to equal
// bytes. Replacements keep their length and the xref offsets stay valid.
func pinVolatile(pdf []byte) []byte {
	for _, m := range infoDate.FindAllSubmatchIndex(pdf, -1) {
		copy(pdf[m[2]:m[3]], pinnedDate)
	}

	ids := trailerID.FindAllSubmatchIndex(pdf, -1)
	if len(ids) == 0 {
		return pdf
	}
	m := ids[len(ids)-1]
	first, second := pdf[m[2]:m[3]], pdf[m[4]:m[5]]
	fresh := bytes.Equal(first, second)
	fill(second, '0')
	if fresh {
		fill(first, '0')
	}

	sum := sha256.Sum256(pdf)
	digest := []byte(hex.EncodeToString(sum[:]))
	copyCycled(second, digest)
	if fresh {
		copyCycled(first, digest)
	}
	return pdf
}

func fill(b []byte, c byte) {
	for i := range b {
		b[i] = c
	}
}

func copyCycled(dst, src []byte) {
	for i := range dst {
		dst[i] = src[i%len(src)]
	}
}
