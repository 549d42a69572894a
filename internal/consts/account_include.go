package consts

// DefaultLendingPrograms 未配置 parser.lending_programs 时使用的 lending 程序列表，
// 同时作为 gRPC 区块订阅的 AccountInclude 过滤条件。
var DefaultLendingPrograms = []string{
	TokenLendingProgramStr,
}
