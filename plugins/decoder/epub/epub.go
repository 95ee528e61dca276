package epub

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"

	"antiochus/pkg/contract"
	dhtml "antiochus/plugins/decoder/html"
)

// Decoder 按 OPF spine 顺序抽取 EPUB 正文文本。
// 缺少 container.xml/OPF 时退化为按名称排序的全部 (X)HTML 条目。
type Decoder struct{}

func New() *Decoder { return &Decoder{} }

func (d *Decoder) Decode(ctx context.Context, fileID contract.FileID, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", contract.ContentError(fileID, err)
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", contract.ContentError(fileID, err)
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}
	order, err := spine(files)
	if err != nil {
		return "", contract.ContentError(fileID, err)
	}
	if len(order) == 0 {
		return "", contract.ContentError(fileID, errors.New("epub: no content documents"))
	}
	var sb strings.Builder
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		f, ok := files[name]
		if !ok {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", contract.ContentError(fileID, err)
		}
		s, err := dhtml.Text(rc)
		_ = rc.Close()
		if err != nil {
			return "", contract.ContentError(fileID, fmt.Errorf("%s: %w", name, err))
		}
		if s == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

type container struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opf struct {
	Items []struct {
		ID        string `xml:"id,attr"`
		Href      string `xml:"href,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"manifest>item"`
	Refs []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

// spine 返回正文条目的 zip 内路径（阅读顺序）。
func spine(files map[string]*zip.File) ([]string, error) {
	cf, ok := files["META-INF/container.xml"]
	if !ok {
		return fallback(files), nil
	}
	var c container
	if err := decodeXML(cf, &c); err != nil {
		return nil, fmt.Errorf("container.xml: %w", err)
	}
	if len(c.Rootfiles) == 0 {
		return fallback(files), nil
	}
	opfPath := c.Rootfiles[0].FullPath
	of, ok := files[opfPath]
	if !ok {
		return nil, fmt.Errorf("epub: package document %q missing", opfPath)
	}
	var pkg opf
	if err := decodeXML(of, &pkg); err != nil {
		return nil, fmt.Errorf("%s: %w", opfPath, err)
	}
	hrefs := make(map[string]string, len(pkg.Items))
	for _, it := range pkg.Items {
		hrefs[it.ID] = it.Href
	}
	base := path.Dir(opfPath)
	out := make([]string, 0, len(pkg.Refs))
	for _, ref := range pkg.Refs {
		href, ok := hrefs[ref.IDRef]
		if !ok {
			continue
		}
		if u, err := url.PathUnescape(href); err == nil {
			href = u
		}
		if i := strings.IndexByte(href, '#'); i >= 0 {
			href = href[:i]
		}
		out = append(out, path.Clean(path.Join(base, href)))
	}
	return out, nil
}

func fallback(files map[string]*zip.File) []string {
	var out []string
	for name := range files {
		switch strings.ToLower(path.Ext(name)) {
		case ".xhtml", ".html", ".htm":
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func decodeXML(f *zip.File, v any) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return xml.NewDecoder(rc).Decode(v)
}
