package registry

import (
	"bytes"
	"encoding/json"

	"antiochus/pkg/contract"
	dauto "antiochus/plugins/decoder/auto"
	ddocx "antiochus/plugins/decoder/docx"
	depub "antiochus/plugins/decoder/epub"
	dhtml "antiochus/plugins/decoder/html"
	dpdf "antiochus/plugins/decoder/pdf"
	dtxt "antiochus/plugins/decoder/txt"
	rauto "antiochus/plugins/reader/auto"
	rfs "antiochus/plugins/reader/filesystem"
	rweb "antiochus/plugins/reader/web"
	"antiochus/plugins/ripper/nmap"
	scsv "antiochus/plugins/store/csv"
	"antiochus/plugins/store/sqlstore"
	wfs "antiochus/plugins/writer/filesystem"
	wobj "antiochus/plugins/writer/objectstore"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewDecoder 工厂签名：接收原样 JSON Options。
type NewDecoder func(raw json.RawMessage) (contract.Decoder, error)

// NewRipper 工厂签名：接收原样 JSON Options。
type NewRipper func(raw json.RawMessage) (contract.Ripper, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// NewStore 工厂签名：接收原样 JSON Options 与已构造的 Writer（不需要字节落地的实现忽略之）。
type NewStore func(raw json.RawMessage, w contract.Writer) (contract.Store, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件/目录/STDIN
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
	// web: http(s) URL（按主机限速 + LRU 缓存）
	"web": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rweb.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rweb.New(&opts)
	},
	// auto: URL 走 web，其余走 fs；选项为 {"fs":{...},"web":{...}}
	"auto": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rauto.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rauto.New(&opts)
	},
}

// Decoder 工厂注册表。单格式解码器无配置项，仍拒绝未知字段。
var Decoder = map[string]NewDecoder{
	"auto": func(raw json.RawMessage) (contract.Decoder, error) {
		var opts dauto.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return dauto.New(&opts), nil
	},
	"txt":  noOptions(func() contract.Decoder { return dtxt.New() }),
	"html": noOptions(func() contract.Decoder { return dhtml.New() }),
	"pdf":  noOptions(func() contract.Decoder { return dpdf.New() }),
	"epub": noOptions(func() contract.Decoder { return depub.New() }),
	"docx": noOptions(func() contract.Decoder { return ddocx.New() }),
}

func noOptions(mk func() contract.Decoder) NewDecoder {
	return func(raw json.RawMessage) (contract.Decoder, error) {
		var opts struct{}
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return mk(), nil
	}
}

// Ripper 工厂注册表（命令家族抽取策略）。
var Ripper = map[string]NewRipper{
	"nmap": func(raw json.RawMessage) (contract.Ripper, error) {
		var opts nmap.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return nmap.New(&opts)
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（覆盖写/原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
	// s3: S3 兼容对象存储（minio-go）
	"s3": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wobj.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wobj.New(&opts)
	},
}

// Store 工厂注册表。
var Store = map[string]NewStore{
	// csv: CSV 编码，字节交给 Writer；csv 无配置项
	"csv": func(raw json.RawMessage, w contract.Writer) (contract.Store, error) {
		var opts struct{}
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return scsv.New(w)
	},
	"sqlite": func(raw json.RawMessage, _ contract.Writer) (contract.Store, error) {
		var opts sqlstore.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return sqlstore.NewSQLite(&opts)
	},
	"postgres": func(raw json.RawMessage, _ contract.Writer) (contract.Store, error) {
		var opts sqlstore.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return sqlstore.NewPostgres(&opts)
	},
}
