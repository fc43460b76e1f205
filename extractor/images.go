package extractor

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/wudi/pdfrename/ir/raw"
)

// ErrNoPageImage reports a page without a usable image XObject.
var ErrNoPageImage = errors.New("page has no image")

// PageImage decodes the largest image XObject on the page. Scanned
// documents place the page scan in a single full-page image, which is the
// case the OCR fallback cares about.
func (e *Extractor) PageImage(ctx context.Context, index int) (image.Image, error) {
	page, err := e.Page(ctx, index)
	if err != nil {
		return nil, err
	}
	res := e.doc.Loader().DerefDict(ctx, dictGet(page, "Resources"))
	if res == nil {
		return nil, ErrNoPageImage
	}
	xobjects := e.doc.Loader().DerefDict(ctx, dictGet(res, "XObject"))
	if xobjects == nil {
		return nil, ErrNoPageImage
	}

	var best raw.Stream
	var bestPixels int64
	for _, key := range xobjects.Keys() {
		obj, _ := xobjects.Get(key)
		st, ok := e.doc.Deref(ctx, obj).(raw.Stream)
		if !ok {
			continue
		}
		dict := st.Dictionary()
		if sub, ok := dict.Get(raw.NameObj{Val: "Subtype"}); ok {
			if n, ok := sub.(raw.Name); !ok || n.Value() != "Image" {
				continue
			}
		} else {
			continue
		}
		w := dictInt(dict, "Width")
		h := dictInt(dict, "Height")
		if w <= 0 || h <= 0 {
			continue
		}
		if pixels := w * h; pixels > bestPixels {
			best, bestPixels = st, pixels
		}
	}
	if best == nil {
		return nil, ErrNoPageImage
	}
	return e.decodeImageStream(ctx, best)
}

// decodeImageStream turns a decoded image XObject payload into an
// image.Image. The sample layout depends on the final filter: DCT and JPX
// decode to packed RGBA, CCITT to 8-bit gray; anything else leaves raw
// samples interpreted through BitsPerComponent and ColorSpace.
func (e *Extractor) decodeImageStream(ctx context.Context, st raw.Stream) (image.Image, error) {
	dict := st.Dictionary()
	w := int(dictInt(dict, "Width"))
	h := int(dictInt(dict, "Height"))

	// CCITT needs the image geometry in its params before decoding.
	injectCCITTGeometry(dict, w, h)

	data, err := e.doc.Loader().DecodeStream(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("decode image stream: %w", err)
	}

	switch lastFilter(dict) {
	case "DCTDecode", "JPXDecode":
		return rgbaImage(data, w, h)
	case "CCITTFaxDecode":
		return grayImage(data, w, h)
	}

	bpc := int(dictInt(dict, "BitsPerComponent"))
	if bpc == 0 {
		bpc = 8
	}
	switch e.colorSpaceName(ctx, dict) {
	case "DeviceRGB":
		if bpc != 8 {
			return nil, fmt.Errorf("unsupported RGB depth %d", bpc)
		}
		return rgbImage(data, w, h)
	case "DeviceGray", "CalGray", "":
		switch bpc {
		case 8:
			return grayImage(data, w, h)
		case 1:
			return bilevelImage(data, w, h)
		}
	}
	return nil, fmt.Errorf("unsupported image format (bpc %d)", bpc)
}

func injectCCITTGeometry(dict raw.Dictionary, w, h int) {
	names, _ := dictGetFilters(dict)
	for _, n := range names {
		if n != "CCITTFaxDecode" {
			continue
		}
		parmsObj, ok := dict.Get(raw.NameObj{Val: "DecodeParms"})
		var parms raw.Dictionary
		if ok {
			parms, _ = parmsObj.(raw.Dictionary)
		}
		if parms == nil {
			parms = raw.Dict()
			dict.Set(raw.NameObj{Val: "DecodeParms"}, parms)
		}
		if _, ok := parms.Get(raw.NameObj{Val: "Columns"}); !ok && w > 0 {
			parms.Set(raw.NameObj{Val: "Columns"}, raw.NumberInt(int64(w)))
		}
		if _, ok := parms.Get(raw.NameObj{Val: "Height"}); !ok && h > 0 {
			parms.Set(raw.NameObj{Val: "Height"}, raw.NumberInt(int64(h)))
		}
	}
}

func dictGetFilters(dict raw.Dictionary) ([]string, bool) {
	obj, ok := dict.Get(raw.NameObj{Val: "Filter"})
	if !ok {
		return nil, false
	}
	switch v := obj.(type) {
	case raw.Name:
		return []string{v.Value()}, true
	case raw.Array:
		var names []string
		for i := 0; i < v.Len(); i++ {
			if item, ok := v.Get(i); ok {
				if n, ok := item.(raw.Name); ok {
					names = append(names, n.Value())
				}
			}
		}
		return names, true
	}
	return nil, false
}

func lastFilter(dict raw.Dictionary) string {
	names, ok := dictGetFilters(dict)
	if !ok || len(names) == 0 {
		return ""
	}
	return names[len(names)-1]
}

func (e *Extractor) colorSpaceName(ctx context.Context, dict raw.Dictionary) string {
	obj, ok := dict.Get(raw.NameObj{Val: "ColorSpace"})
	if !ok {
		return ""
	}
	switch v := e.doc.Deref(ctx, obj).(type) {
	case raw.Name:
		return v.Value()
	case raw.Array:
		if v.Len() > 0 {
			if item, ok := v.Get(0); ok {
				if n, ok := item.(raw.Name); ok {
					return n.Value()
				}
			}
		}
	}
	return ""
}

func rgbaImage(data []byte, w, h int) (image.Image, error) {
	if len(data) < 4*w*h {
		return nil, errors.New("image data short for RGBA samples")
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	copy(img.Pix, data[:4*w*h])
	return img, nil
}

func rgbImage(data []byte, w, h int) (image.Image, error) {
	if len(data) < 3*w*h {
		return nil, errors.New("image data short for RGB samples")
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		img.Pix[4*i] = data[3*i]
		img.Pix[4*i+1] = data[3*i+1]
		img.Pix[4*i+2] = data[3*i+2]
		img.Pix[4*i+3] = 0xFF
	}
	return img, nil
}

func grayImage(data []byte, w, h int) (image.Image, error) {
	if len(data) < w*h {
		return nil, errors.New("image data short for gray samples")
	}
	img := image.NewGray(image.Rect(0, 0, w, h))
	copy(img.Pix, data[:w*h])
	return img, nil
}

// bilevelImage expands 1-bit rows (padded to byte boundaries) to 8-bit
// gray.
func bilevelImage(data []byte, w, h int) (image.Image, error) {
	rowBytes := (w + 7) / 8
	if len(data) < rowBytes*h {
		return nil, errors.New("image data short for 1-bit samples")
	}
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := data[y*rowBytes : (y+1)*rowBytes]
		for x := 0; x < w; x++ {
			if row[x/8]&(0x80>>(x%8)) == 0 {
				img.Pix[y*img.Stride+x] = 0
			} else {
				img.Pix[y*img.Stride+x] = 0xFF
			}
		}
	}
	return img, nil
}

func dictInt(d raw.Dictionary, key string) int64 {
	if d == nil {
		return 0
	}
	if obj, ok := d.Get(raw.NameObj{Val: key}); ok {
		if n, ok := obj.(raw.Number); ok {
			return n.Int()
		}
	}
	return 0
}
