package main

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// deliveryTransformation is applied to catalog images shown in the chat.
const deliveryTransformation = "c_fill,g_auto,h_800,w_800/f_auto/q_auto"

// imageHost stores catalog images on Cloudinary.
type imageHost struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func newImageHost(cloudURL, folder string) (*imageHost, error) {
	cld, err := cloudinary.NewFromURL(cloudURL)
	if err != nil {
		return nil, fmt.Errorf("cloudinary init: %w", err)
	}
	// delivery URLs are stored and compared, keep them free of the _a query
	cld.Config.URL.Analytics = false
	return &imageHost{cld: cld, folder: folder}, nil
}

// Upload stores file and returns its secure URL and public id.
func (h *imageHost) Upload(ctx context.Context, file io.Reader) (string, string, error) {
	res, err := h.cld.Upload.Upload(ctx, file, uploader.UploadParams{Folder: h.folder})
	if err != nil {
		return "", "", fmt.Errorf("upload: %w", err)
	}
	if res.Error.Message != "" {
		return "", "", fmt.Errorf("upload: %s", res.Error.Message)
	}
	return res.SecureURL, res.PublicID, nil
}

// Destroy removes an uploaded image. A missing image is not an error.
func (h *imageHost) Destroy(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	res, err := h.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("destroy %s: %w", publicID, err)
	}
	log.Printf("deleted cloudinary image %s: %s", publicID, res.Result)
	return nil
}

// DeliveryURL builds the transformed https URL for publicID.
func (h *imageHost) DeliveryURL(publicID string) (string, error) {
	img, err := h.cld.Image(publicID)
	if err != nil {
		return "", err
	}
	img.Transformation = deliveryTransformation
	return img.String()
}
