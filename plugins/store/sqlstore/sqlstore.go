package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"antiochus/pkg/contract"
)

// 知识表在数据库中的形态：一张宽表，ord 列保存行序，其余每列一个 TEXT 列。
// Persist 在单个事务内重建整张表，失败回滚，不留下部分内容。

// OrdColumn 为行序列名，知识列不得与之同名。
const OrdColumn = "ord"

// Options: SQL 知识库选项。
type Options struct {
	// DSN: sqlite 为数据库文件路径（缺省 knowledge.db）；postgres 为连接串（必填）。
	DSN string `json:"dsn,omitempty"`
	// Table: 表名；为空时由工件标识推导（去目录与扩展名，非 [A-Za-z0-9_] 字符替换为 '_'）。
	Table string `json:"table,omitempty"`
	// BusyTimeoutMs: 仅 sqlite；<=0 使用 5000。
	BusyTimeoutMs int `json:"busy_timeout_ms,omitempty"`
}

type dialect struct {
	name   string
	driver string
	// exists 查询返回同名表数量，参数为表名。
	exists string
	ph     func(i int) string
}

var (
	sqliteDialect = dialect{
		name:   "sqlite",
		driver: "sqlite",
		exists: "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
		ph:     func(int) string { return "?" },
	}
	postgresDialect = dialect{
		name:   "postgres",
		driver: "pgx",
		exists: "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1",
		ph:     func(i int) string { return "$" + strconv.Itoa(i) },
	}
)

// Store 实现 contract.Store；连接惰性建立。
type Store struct {
	d     dialect
	db    *sql.DB
	table string
	busy  int

	mu    sync.Mutex
	ready bool
}

var _ contract.Store = (*Store)(nil)

// NewSQLite 使用纯 Go 的 modernc.org/sqlite 驱动。
func NewSQLite(opts *Options) (*Store, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	if strings.TrimSpace(o.DSN) == "" {
		o.DSN = "knowledge.db"
	}
	return open(sqliteDialect, o)
}

// NewPostgres 使用 pgx 的 database/sql 驱动；DSN 必填。
func NewPostgres(opts *Options) (*Store, error) {
	if opts == nil || strings.TrimSpace(opts.DSN) == "" {
		return nil, fmt.Errorf("%w: postgres dsn is required", contract.ErrInvalidInput)
	}
	return open(postgresDialect, *opts)
}

func open(d dialect, o Options) (*Store, error) {
	if o.Table != "" && !validIdent(o.Table) {
		return nil, fmt.Errorf("%w: invalid table name %q", contract.ErrInvalidInput, o.Table)
	}
	db, err := sql.Open(d.driver, strings.TrimSpace(o.DSN))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.name, err)
	}
	if d.driver == sqliteDialect.driver {
		// sqlite 单写者；单连接使 PRAGMA 对后续语句生效
		db.SetMaxOpenConns(1)
	}
	busy := o.BusyTimeoutMs
	if busy <= 0 {
		busy = 5000
	}
	return &Store{d: d, db: db, table: o.Table, busy: busy}, nil
}

// Close 释放连接池。
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// init 首次使用时连通并设置会话参数；失败不缓存，下次重试。
func (s *Store) init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	if err := s.db.PingContext(ctx); err != nil {
		return err
	}
	if s.d.driver == sqliteDialect.driver {
		if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = "+strconv.Itoa(s.busy)); err != nil {
			return err
		}
	}
	s.ready = true
	return nil
}

// tableFor 返回工件对应的表名。
func (s *Store) tableFor(id contract.ArtifactID) (string, error) {
	if s.table != "" {
		return s.table, nil
	}
	name := TableName(id)
	if name == "" {
		return "", fmt.Errorf("%w: no table name for %q", contract.ErrPathInvalid, id)
	}
	return name, nil
}

// TableName 由工件标识推导表名："out/knowledge.csv" → "knowledge"。
// 首字符为数字时加 '_' 前缀；无可用字符返回空串。
func TableName(id contract.ArtifactID) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(string(id)), "\\", "/"))
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return ""
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

func validIdent(s string) bool {
	return s != "" && TableName(contract.ArtifactID(s)) == s
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// Load 读取整张表（按 ord 排序）。表不存在时返回空表；其他失败归类 ErrFormat。
func (s *Store) Load(ctx context.Context, id contract.ArtifactID) (contract.Table, error) {
	name, err := s.tableFor(id)
	if err != nil {
		return contract.Table{}, fmt.Errorf("%w: %w", contract.ErrFormat, err)
	}
	t, err := s.load(ctx, name)
	if err != nil {
		return contract.Table{}, fmt.Errorf("%w: load %s: %w", contract.ErrFormat, name, err)
	}
	return t, nil
}

func (s *Store) load(ctx context.Context, name string) (contract.Table, error) {
	if err := s.init(ctx); err != nil {
		return contract.Table{}, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, s.d.exists, name).Scan(&n); err != nil {
		return contract.Table{}, err
	}
	if n == 0 {
		return contract.Table{}, nil
	}
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+quote(name)+" ORDER BY "+quote(OrdColumn))
	if err != nil {
		return contract.Table{}, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return contract.Table{}, err
	}
	ord := -1
	var t contract.Table
	for i, c := range cols {
		if c == OrdColumn {
			ord = i
			continue
		}
		t.Columns = append(t.Columns, c)
	}
	if ord < 0 {
		return contract.Table{}, errors.New("missing ord column")
	}
	vals := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range vals {
		dest[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return contract.Table{}, err
		}
		row := make([]string, 0, len(t.Columns))
		for i, v := range vals {
			if i != ord {
				row = append(row, v.String)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return contract.Table{}, err
	}
	return t, contract.ValidateTable(t)
}

// Persist 在一个事务内删除并重建表后逐行插入；失败归类 ErrIO 并回滚。
func (s *Store) Persist(ctx context.Context, id contract.ArtifactID, t contract.Table) error {
	name, err := s.tableFor(id)
	if err != nil {
		return fmt.Errorf("%w: %w", contract.ErrIO, err)
	}
	if err := contract.ValidateTable(t); err != nil {
		return fmt.Errorf("%w: %v", contract.ErrIO, err)
	}
	if t.Index(OrdColumn) >= 0 {
		return fmt.Errorf("%w: column name %q is reserved", contract.ErrIO, OrdColumn)
	}
	if err := s.persist(ctx, name, t); err != nil {
		return fmt.Errorf("%w: persist %s: %w", contract.ErrIO, name, err)
	}
	return nil
}

func (s *Store) persist(ctx context.Context, name string, t contract.Table) error {
	if err := s.init(ctx); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quote(name)); err != nil {
		return err
	}
	defs := []string{quote(OrdColumn) + " INTEGER NOT NULL PRIMARY KEY"}
	cols := []string{quote(OrdColumn)}
	phs := []string{s.d.ph(1)}
	for i, c := range t.Columns {
		defs = append(defs, quote(c)+" TEXT NOT NULL")
		cols = append(cols, quote(c))
		phs = append(phs, s.d.ph(i+2))
	}
	if _, err := tx.ExecContext(ctx, "CREATE TABLE "+quote(name)+" ("+strings.Join(defs, ", ")+")"); err != nil {
		return err
	}
	if len(t.Rows) > 0 {
		stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+quote(name)+" ("+strings.Join(cols, ", ")+") VALUES ("+strings.Join(phs, ", ")+")")
		if err != nil {
			return err
		}
		defer stmt.Close()
		args := make([]any, len(t.Columns)+1)
		for i, r := range t.Rows {
			args[0] = i
			for j, v := range r {
				args[j+1] = v
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}
