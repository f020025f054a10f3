//go:build !linux

package filetask

func renameNoReplace(src, dst string) error {
	return renameGuarded(src, dst)
}
