package banner

import (
	"fmt"

	"croptalk/pkg/config"
)

const banner = `
 ██████╗██████╗  ██████╗ ██████╗ ████████╗ █████╗ ██╗     ██╗  ██╗
██╔════╝██╔══██╗██╔═══██╗██╔══██╗╚══██╔══╝██╔══██╗██║     ██║ ██╔╝
██║     ██████╔╝██║   ██║██████╔╝   ██║   ███████║██║     █████╔╝ 
██║     ██╔══██╗██║   ██║██╔═══╝    ██║   ██╔══██║██║     ██╔═██╗ 
╚██████╗██║  ██║╚██████╔╝██║        ██║   ██║  ██║███████╗██║  ██╗
 ╚═════╝╚═╝  ╚═╝ ╚═════╝ ╚═╝        ╚═╝   ╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝
`

// Print prints the startup banner with the effective configuration.
func Print(eff config.EffectiveConfig, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	src := eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", eff.DBPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config:   %s\n", src)
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET  /v1/users/{user}/conversations        - conversation list")
	fmt.Println("GET  /v1/conversations/{id}/messages       - thread (use ?since=<msgID>)")
	fmt.Println("POST /v1/messages                          - send a message")
	fmt.Println("POST /v1/conversations/{id}/read           - mark messages read")
}
