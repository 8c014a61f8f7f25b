package transcode

import (
	"fmt"
	"strconv"
	"strings"
)

// Transformation is the edit applied to an uploaded source video: trim, reframe,
// and an optional image layer that appears from StartOffset until the end.
type Transformation struct {
	StartSeconds float64
	EndSeconds   float64
	Width        int
	Height       int
	Overlay      *OverlayLayer
}

// OverlayLayer composites an uploaded image on top of the trimmed video.
type OverlayLayer struct {
	PublicID    string
	Width       int
	Gravity     string
	OffsetX     int
	OffsetY     int
	StartOffset float64
}

// String renders the chained transformation in URL form, e.g.
// so_10,eo_40/c_fill,h_1920,w_1080/l_overlays:qr,w_270/fl_layer_apply,g_south_east,so_27.5,x_40,y_40
func (t Transformation) String() string {
	parts := []string{
		fmt.Sprintf("so_%s,eo_%s", formatSeconds(t.StartSeconds), formatSeconds(t.EndSeconds)),
		fmt.Sprintf("c_fill,h_%d,w_%d", t.Height, t.Width),
	}
	if o := t.Overlay; o != nil {
		gravity := o.Gravity
		if gravity == "" {
			gravity = "south_east"
		}
		parts = append(parts,
			fmt.Sprintf("l_%s,w_%d", layerID(o.PublicID), o.Width),
			fmt.Sprintf("fl_layer_apply,g_%s,so_%s,x_%d,y_%d", gravity, formatSeconds(o.StartOffset), o.OffsetX, o.OffsetY),
		)
	}
	return strings.Join(parts, "/")
}

// Layer references use ':' where the public ID has folder separators.
func layerID(publicID string) string {
	return strings.ReplaceAll(publicID, "/", ":")
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
