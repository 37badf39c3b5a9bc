package util

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"text/template"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// FileMode is the default FileMode used when creating files.
const FileMode = 0664

// DirMode is the default FileMode used when creating directories.
const DirMode = 0775

// FileExists checks whether some file exists.
func FileExists(file string) bool {
	stat, err := os.Stat(file)
	return err == nil && !stat.IsDir()
}

// DirExists checks whether some directory exists.
func DirExists(dir string) bool {
	stat, err := os.Stat(dir)
	return err == nil && stat.IsDir()
}

// WriteFile writes data to file, creating the containing directory if needed
// and truncating any previous content.
func WriteFile(file string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(file), DirMode); err != nil {
		return errors.Wrapf(err, "failed to create directory for '%s'", file)
	}
	if err := os.WriteFile(file, data, FileMode); err != nil {
		return errors.Wrapf(err, "failed to write '%s'", file)
	}
	return nil
}

// CopyFile copies the regular file src to dst, overwriting dst. If dst is an
// existing directory the file keeps its base name inside it.
func CopyFile(src, dst string) error {
	if DirExists(dst) {
		dst = filepath.Join(dst, filepath.Base(src))
	}
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "failed to open '%s'", src)
	}
	defer in.Close()

	stat, err := in.Stat()
	if err != nil {
		return errors.Wrapf(err, "failed to stat '%s'", src)
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, stat.Mode().Perm())
	if err != nil {
		return errors.Wrapf(err, "failed to create '%s'", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "failed to copy '%s' to '%s'", src, dst)
	}
	return out.Close()
}

// DecodeYaml decodes YAML data into v, rejecting unknown fields.
func DecodeYaml(data []byte, v interface{}) error {
	if err := yaml.UnmarshalStrict(data, v); err != nil {
		return errors.Wrap(err, "failed to decode yaml")
	}
	return nil
}

// GenerateFile executes tmpl over data and writes the result to file.
func GenerateFile(file string, tmpl *template.Template, data interface{}) error {
	var b bytes.Buffer
	if err := tmpl.Execute(&b, data); err != nil {
		return errors.Wrapf(err, "failed to generate '%s'", file)
	}
	return WriteFile(file, b.Bytes())
}
