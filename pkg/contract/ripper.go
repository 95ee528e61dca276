package contract

// Ripper: 一个命令家族的提取策略（扫描 + 分词 + 目标提取）。
// 所有方法为纯函数，同一输入恒得同一输出；实现可被多个 goroutine 并发调用。
type Ripper interface {
	// Name 返回策略名（如 "nmap"）。
	Name() string
	// Scan 自左向右返回候选片段。
	Scan(text string) []Span
	// Tokenize 把候选命令拆成规范命令与尾随描述。空白输入返回两个空串。
	Tokenize(command string) (cleaned, description string)
	// ExtractTarget 返回片段中首个目标地址；无匹配时 ok=false。
	ExtractTarget(span string) (target string, ok bool)
	// NeedsCleaning 为 true 时产出清洗记录（CleanedColumns），否则原始记录（RawColumns）。
	NeedsCleaning() bool
}
