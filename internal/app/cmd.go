package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandPromoteAdmin は指定ユーザーを管理者に昇格することを示す。
	// 管理者はAPIから作成できないため、運用者がこのコマンドで付与する。
	CommandPromoteAdmin Command = "promote-admin"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "promote-admin":
		return CommandPromoteAdmin
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}

// commandArg はサブコマンドの位置引数を返す。存在しない場合は空文字列を返す。
func commandArg(args []string, i int) string {
	if len(args) <= i+1 {
		return ""
	}
	return args[i+1]
}
