package server

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"webgame/logger"
)

// Console 标准输入上的运维命令：help | info | io | data | exit
type Console struct {
	in    io.Reader
	out   io.Writer
	sched *Scheduler
	exit  func()
}

func NewConsole(in io.Reader, out io.Writer, s *Scheduler, exit func()) *Console {
	return &Console{in: in, out: out, sched: s, exit: exit}
}

func (c *Console) help() {
	fmt.Fprintf(c.out, "commands:\n\thelp\n\tinfo\n\texit\n\tio: set/unset io log: %v\n\tdata: set/unset data log (no effect if io log is unset): %v\n",
		logger.IOLog(), logger.DataLog())
}

// Run 逐行读取命令直到 exit 或输入结束；exit 触发优雅关闭
func (c *Console) Run() {
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		if c.Exec(strings.TrimSpace(scanner.Text())) {
			return
		}
	}
}

// Exec 执行一条命令，返回是否退出
func (c *Console) Exec(cmd string) bool {
	switch cmd {
	case "":
	case "help":
		c.help()
	case "info":
		info := c.sched.Info()
		logger.Log.Infof("INFO: connections: %d (%d ready), entities: %d, tick: %d", info.Connections, info.Ready, info.Entities, info.Tick)
		fmt.Fprintf(c.out, "connections: %d (%d ready)\nentities: %d\ntick: %d\n", info.Connections, info.Ready, info.Entities, info.Tick)
	case "io":
		fmt.Fprintf(c.out, "io log: %v\n", logger.ToggleIOLog())
	case "data":
		fmt.Fprintf(c.out, "data log: %v\n", logger.ToggleDataLog())
	case "exit":
		logger.Log.Infof("console: exit requested")
		if c.exit != nil {
			c.exit()
		}
		return true
	default:
		fmt.Fprintf(c.out, "unknown command: %s\n", cmd)
		c.help()
	}
	return false
}
