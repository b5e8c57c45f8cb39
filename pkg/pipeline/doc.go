// Package pipeline wires the renderer, harvester, downloader and storage
// into a single run.
//
// A run prepares the output folder, opens the results page, scrolls until
// the harvester stops, closes the page, downloads the first target_count
// candidates and optionally writes a manifest next to the images.
//
//	p, err := pipeline.New(cfg)
//	if err != nil {
//	    return err
//	}
//	res, err := p.Run(ctx)
//
// Per-item and per-iteration failures are reported and counted, never
// returned. Zero downloaded images is a normal result.
package pipeline
