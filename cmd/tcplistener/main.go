// Command tcplistener prints how the server would parse and answer each
// incoming request. It writes no access log.
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/Brownie44l1/webserver/internal/request"
	"github.com/Brownie44l1/webserver/internal/response"
)

func main() {
	addr := flag.String("addr", ":42069", "listen address")
	root := flag.String("root", ".", "web root to resolve paths against")
	strict := flag.Bool("strict", true, `reject request paths containing ".." segments`)
	flag.Parse()

	listener, err := net.Listen("tcp", *addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer listener.Close()
	fmt.Printf("Listening on %s...\n", listener.Addr())

	builder := response.NewBuilder(strings.TrimSuffix(*root, "/"))
	for {
		conn, err := listener.Accept()
		if err != nil {
			fmt.Println("Accept error:", err)
			continue
		}

		go handleConnection(conn, builder, *strict)
	}
}

func handleConnection(conn net.Conn, builder *response.Builder, strict bool) {
	defer conn.Close()

	buf := make([]byte, request.DefaultMaxRequestSize)
	req, err := request.RequestFromReader(conn, buf, strict)
	if err != nil {
		fmt.Println("read error:", err)
	}
	resp := builder.Build(req)

	describe(os.Stdout, conn.RemoteAddr().String(), req, resp)

	rw := response.NewWriter(conn)
	if _, err := rw.WriteHead(resp, time.Now()); err != nil {
		fmt.Println("write error:", err)
		return
	}
	if n, err := rw.WriteBody(resp); err != nil {
		fmt.Printf("write error after %d/%d body bytes: %v\n", n, resp.BodyLength, err)
	}
}

func describe(w io.Writer, client string, req *request.Request, resp *response.Response) {
	fmt.Fprintf(w, "Client: %s\n", client)
	fmt.Fprintln(w, "Request Line")
	fmt.Fprintf(w, "Method: %s\n", req.Method)
	fmt.Fprintf(w, "Path: %s\n", req.Path)
	fmt.Fprintf(w, "Version: %s\n", req.Version)
	fmt.Fprintf(w, "Logged as: %s\n", req.RequestLine)
	if req.Err != nil {
		fmt.Fprintf(w, "Error: %v\n", req.Err)
	}
	fmt.Fprintf(w, "Response: %d %s (%d bytes)\n", resp.StatusCode, resp.StatusText, resp.BodyLength)
}
