package pipeline

import (
	"context"
	"fmt"
	"net/url"

	"subclipper/internal/models"
	"subclipper/internal/render"
	"subclipper/internal/transcode"
)

const (
	overlayRenderSize   = 800
	overlayRenderMargin = 40
)

var destinationTemplates = map[models.OverlayKind]string{
	models.OverlayTip:     "%s/%s/tip",
	models.OverlayTicket:  "%s/%s/tickets",
	models.OverlayContent: "%s/%s",
	models.OverlayMerch:   "%s/%s/merch",
}

// DestinationURL is the tracked link the QR overlay encodes.
func DestinationURL(siteURL, slug string, kind models.OverlayKind) string {
	tmpl, ok := destinationTemplates[kind]
	if !ok {
		tmpl = destinationTemplates[models.OverlayContent]
	}
	q := url.Values{}
	q.Set("utm_source", "social")
	q.Set("utm_medium", "qr")
	q.Set("utm_campaign", "subclip")
	q.Set("utm_content", string(kind))
	return fmt.Sprintf(tmpl, siteURL, url.PathEscape(slug)) + "?" + q.Encode()
}

func (p *Pipeline) generateOverlay(ctx context.Context, req models.ClipRequest, publicID string) (*models.OverlayAsset, error) {
	destination := DestinationURL(p.siteURL, req.Media.ArtistSlug, req.OverlayKind)

	img, err := p.renderer.Render(ctx, render.Request{
		Data:            destination,
		Size:            overlayRenderSize,
		ErrorCorrection: render.ErrorCorrectionHigh,
		Margin:          overlayRenderMargin,
	})
	if err != nil {
		return nil, &Error{Kind: KindOverlayGenerationFailed, Stage: StageOverlay, Err: err}
	}

	asset, err := p.transcoder.Upload(ctx, transcode.UploadRequest{
		ResourceType: transcode.ResourceImage,
		PublicID:     publicID,
		Data:         img,
		Filename:     "overlay.png",
	})
	if err != nil {
		return nil, &Error{Kind: KindOverlayGenerationFailed, Stage: StageOverlay, Err: err}
	}
	return &models.OverlayAsset{DestinationURL: destination, PublicID: asset.PublicID}, nil
}
