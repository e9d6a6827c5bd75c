package catalog

import "os"

// statPathImpl stats path for File derivation. Returns (nil, nil) when the
// path is absent — spec.md §4.1 says to skip, not error, in that case.
// created_time comes from the platform's ctime (via statCtime), not from
// the triggering event's timestamp — a file observed long after it was
// created must still report its real creation time.
func statPathImpl(path string) (*statInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	createdTime := fi.ModTime()
	if ct, ok := statCtime(fi); ok {
		createdTime = ct
	}
	return &statInfo{
		size:        fi.Size(),
		modTime:     FormatTime(fi.ModTime()),
		createdTime: FormatTime(createdTime),
		isRegular:   fi.Mode().IsRegular(),
	}, nil
}
