// Package logger provides the structured logging interface used by the crawler.
//
// It wraps zerolog: a coloured console writer on stderr, an optional JSON
// file sink, and per-call or accumulated fields.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("component", "downloader")
//	log.InfoWithFields("Asset saved", map[string]interface{}{
//	    "file": "musinsa_product_1234567_001.jpg",
//	    "size": 48211,
//	})
//
// Components take a Logger in their constructor; tests pass NewNopLogger or
// NewTestLogger to assert on what was logged.
package logger
