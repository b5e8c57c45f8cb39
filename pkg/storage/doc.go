// Package storage manages the output folder of a harvest run.
//
// NewManager creates the folder idempotently. SaveImage writes each image
// as image_NNN.<ext> (1-based, zero padded to three digits) through a
// temporary file and a rename, so readers never see partial files.
//
//	manager, err := storage.NewManager("profilePhotos")
//	if err != nil {
//	    return err
//	}
//	path, n, err := manager.SaveImage(resp.Body, 1, ".png")
package storage
