package app

// Command はサブコマンド。
type Command string

const (
	// CommandServe はHTTPサーバーを起動する（既定）。
	CommandServe Command = "serve"
	// CommandSuggest は標準入力の各行を入力途中の検索語として地点候補を表示する。
	CommandSuggest Command = "suggest"
	// CommandHealthcheck は起動中のサーバーの /health を確認して終了する。
	// シェルを持たないコンテナのHEALTHCHECKから使う。
	CommandHealthcheck Command = "healthcheck"
)

var commands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandSuggest):     CommandSuggest,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand は最初の引数をサブコマンドとして解釈する。
// 引数がない場合や未知の名前は CommandServe として扱う。
func ParseCommand(args []string) Command {
	if len(args) > 0 {
		if cmd, ok := commands[args[0]]; ok {
			return cmd
		}
	}
	return CommandServe
}
