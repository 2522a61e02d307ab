package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/John-Robertt/linkpreview/internal/config"
)

type cliArgs struct {
	Config  config.CLIArgs
	Targets []string
}

// parseArgs 解析 fetch/serve 共用的参数；allowTargets=false 时拒绝位置参数。
//
// 支持 "--flag value" 与 "--flag=value" 两种写法。
func parseArgs(args []string, allowTargets bool) (cliArgs, error) {
	var ca cliArgs

	for i := 0; i < len(args); i++ {
		a := args[i]

		if !strings.HasPrefix(a, "-") {
			if !allowTargets {
				return cliArgs{}, fmt.Errorf("不支持位置参数 %q", a)
			}
			ca.Targets = append(ca.Targets, a)
			continue
		}
		if a == "--" {
			if !allowTargets && i+1 < len(args) {
				return cliArgs{}, fmt.Errorf("不支持位置参数 %q", args[i+1])
			}
			ca.Targets = append(ca.Targets, args[i+1:]...)
			break
		}

		name, val, hasVal := strings.Cut(a, "=")
		if !hasVal {
			if i+1 >= len(args) {
				return cliArgs{}, fmt.Errorf("%s 需要一个值", name)
			}
			i++
			val = args[i]
		}

		switch name {
		case "--config":
			if strings.TrimSpace(val) == "" {
				return cliArgs{}, fmt.Errorf("--config 不能为空")
			}
			ca.Config.ConfigPath = val
		case "--endpoint":
			ca.Config.Endpoint = val
			ca.Config.EndpointSet = true
		case "--timeout-ms":
			n, err := strconv.Atoi(val)
			if err != nil || n <= 0 {
				return cliArgs{}, fmt.Errorf("--timeout-ms 必须是正整数，实际是 %q", val)
			}
			ca.Config.TimeoutMS = n
			ca.Config.TimeoutSet = true
		case "--sources":
			ca.Config.Sources = splitList(val)
			ca.Config.SourcesSet = true
		case "--listen":
			ca.Config.Listen = val
			ca.Config.ListenSet = true
		case "--log-level":
			ca.Config.LogLevel = val
			ca.Config.LogLevelSet = true
		default:
			return cliArgs{}, fmt.Errorf("未知参数 %q", name)
		}
	}

	return ca, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  linkpreview fetch [flags] <url>...
  linkpreview serve [flags]

命令：
  fetch  抓取一个或多个 URL 的预览信息，结果以 JSON 输出到 stdout
  serve  启动 HTTP 预览服务

使用 "linkpreview <command> --help" 查看详细说明。
`)
}

const commonFlags = `  --config      配置文件路径（默认在当前目录查找 linkpreview.json/.yaml/.yml）
  --endpoint    metadata 服务地址（默认 https://open-apis.hax.cloud）
  --timeout-ms  单次抓取超时（毫秒，默认 5000）
  --sources     数据源链，逗号分隔：hax,page（默认 hax）
  --log-level   日志级别：debug|info|warn|error（默认 info）
  -h, --help    显示帮助
`

func printFetchUsage() {
	fmt.Fprint(os.Stdout, `用法：
  linkpreview fetch [flags] <url>...

单个 url 输出 PreviewResult JSON；多个 url 输出批量报告 JSON。
任一目标失败时退出码为 1（仍会输出兜底结果）。

参数：
`+commonFlags)
}

func printServeUsage() {
	fmt.Fprint(os.Stdout, `用法：
  linkpreview serve [flags]

参数：
  --listen      监听地址（默认 127.0.0.1:8080）
`+commonFlags)
}
