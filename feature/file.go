package feature

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LegacyCompany is the flat record written by the first version of the extractor
type LegacyCompany struct {
	Name        string            `json:"Nome"`
	Activity    string            `json:"Atividade"`
	Cluster     string            `json:"Polo"`
	Coordinates LegacyCoordinates `json:"Coordenadas"`
}

// LegacyCoordinates keeps lat before lng, unlike GeoJSON
type LegacyCoordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Encode writes the collection as indented JSON without escaping HTML characters
func Encode(w io.Writer, c Collection) error {
	return encode(w, NewCollection(c.Features))
}

// Decode reads a collection written by Encode
func Decode(r io.Reader) (Collection, error) {
	var c Collection
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return Collection{}, fmt.Errorf("decoding feature collection: %w", err)
	}
	if c.Type != "FeatureCollection" {
		return Collection{}, fmt.Errorf("unexpected GeoJSON type %q", c.Type)
	}
	return c, nil
}

// ReadFile loads a collection from disk
func ReadFile(path string) (Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return Collection{}, err
	}
	defer f.Close()
	return Decode(f)
}

// WriteFile replaces path with the encoded collection
func WriteFile(path string, c Collection) error {
	var buf bytes.Buffer
	if err := Encode(&buf, c); err != nil {
		return err
	}
	return writeAtomic(path, buf.Bytes())
}

// WriteLegacyFile writes features as the flat list used by the first extractor
func WriteLegacyFile(path string, features []Feature) error {
	list := make([]LegacyCompany, 0, len(features))
	for _, f := range features {
		c, ok := f.Company()
		if !ok {
			continue
		}
		list = append(list, LegacyCompany{
			Name:        c.Name,
			Activity:    c.Activity,
			Cluster:     c.Cluster,
			Coordinates: LegacyCoordinates{Lat: c.Lat, Lng: c.Lng},
		})
	}

	var buf bytes.Buffer
	if err := encode(&buf, list); err != nil {
		return err
	}
	return writeAtomic(path, buf.Bytes())
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

// writeAtomic writes to a temp file next to path and renames it over path
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
