package render

// Daemon configuration templates. Values come from the effective
// supervisor configuration; rendering is deterministic so identical
// inputs always produce byte-identical files.

const dnsmasqConfTemplate = `# Generated by pxe-supervisor. Do not edit; changes are overwritten on startup.
port=0
dhcp-range={{.RangeStart}},{{.RangeEnd}},{{.Netmask}},{{.LeaseTime}}
dhcp-option=option:router,{{.Router}}
dhcp-option=option:dns-server,{{join .DNSServers ","}}
dhcp-option=option:domain-name,{{.Domain}}
dhcp-boot=pxelinux.0,pxeserver,{{.HostIP}}
log-dhcp
`

const nginxConfTemplate = `# Generated by pxe-supervisor. Do not edit; changes are overwritten on startup.
worker_processes 1;
daemon off;
pid /run/pxe-nginx.pid;
error_log stderr warn;

events {
    worker_connections 128;
}

http {
    access_log off;
    sendfile on;

    server {
        listen {{.HTTPPort}};
        root {{.ImagesRoot}};
        autoindex on;
    }
}
`

const bootMenuTemplate = `# Generated by pxe-supervisor. Do not edit; changes are overwritten on startup.
DEFAULT menu.c32
PROMPT 0
TIMEOUT {{.TimeoutDeciseconds}}
ONTIMEOUT {{.DefaultBoot}}

MENU TITLE PXE Boot Menu

LABEL local
  MENU LABEL Boot from local disk
  LOCALBOOT 0
{{range .Distributions}}
LABEL {{.Tag}}
  MENU LABEL Install {{.Tag}}
  KERNEL {{$.BaseURL}}/{{.Tag}}/vmlinuz
  APPEND initrd={{$.BaseURL}}/{{.Tag}}/initrd.img
{{end}}`
