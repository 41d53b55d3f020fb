// Package storage manages the per-run output directory.
//
// Each crawl writes into <base>_<YYYYMMDD_HHMMSS>. The Manager indexes the
// images already there so a resumed run can skip them, and writes new files
// through a temporary file and rename so an interrupted download never
// leaves a truncated image under its final name:
//
//	manager, err := storage.NewManager(storage.RunDirName("musinsa_images", time.Now()))
//	if err != nil {
//		return err
//	}
//	if size, ok := manager.ExistingSize(name); !ok || size <= minSize {
//		n, err := manager.Save(body, name)
//		...
//	}
package storage
