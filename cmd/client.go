package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

// micChunkSize and micChunkDelay pace a recorded file like a live microphone
const (
	micChunkSize  = 3200
	micChunkDelay = 100 * time.Millisecond
)

var clientCommands = map[string]string{
	"/interrupt": "interrupt",
	"/pause":     "pause",
	"/listen":    "listen",
	"/call":      "call_contact",
	"/notify":    "notify_contacts",
	"/close":     "close",
	"/next":      "checklist_next",
	"/prev":      "checklist_previous",
	"/read":      "checklist_read",
}

func newClientCommand() *cobra.Command {
	var (
		serverURL   string
		token       string
		description string
		checklist   bool
		audioDir    string
		micFile     string
	)

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Terminal client for a running server",
		Long: `Connects to the websocket, starts an emergency session (or a checklist)
and sends every stdin line as typed input. Lines starting with / are actions:
/interrupt /pause /listen /call /notify /close /next /prev /read.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			headers := http.Header{}
			headers.Add("Authorization", "Bearer "+token)

			conn, _, err := websocket.DefaultDialer.Dial(serverURL, headers)
			if err != nil {
				return fmt.Errorf("dial %s: %w", serverURL, err)
			}
			defer conn.Close()

			c := &terminalClient{conn: conn, out: cmd.OutOrStdout(), audioDir: audioDir}

			start := "session_start"
			if checklist {
				start = "checklist_start"
			}
			if err := c.sendJSON(map[string]interface{}{"type": start, "description": description}); err != nil {
				return err
			}

			done := make(chan struct{})
			go func() {
				defer close(done)
				c.readLoop()
			}()

			if micFile != "" {
				go c.streamFile(micFile)
			}

			lines := make(chan string)
			go func() {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					lines <- scanner.Text()
				}
				close(lines)
			}()

			for {
				select {
				case <-done:
					return nil
				case line, ok := <-lines:
					if !ok {
						c.sendJSON(map[string]interface{}{"type": "close"})
						c.closeGracefully(done)
						return nil
					}
					if err := c.handleLine(line); err != nil {
						fmt.Fprintln(c.out, "!", err)
					}
				}
			}
		},
	}

	cmd.Flags().StringVar(&serverURL, "url", "ws://localhost:8080/ws", "websocket url")
	cmd.Flags().StringVar(&token, "token", os.Getenv("LIFELINE_TOKEN"), "user token (see the token command)")
	cmd.Flags().StringVar(&description, "description", "", "what is happening")
	cmd.Flags().BoolVar(&checklist, "checklist", false, "open the checklist instead of a guided session")
	cmd.Flags().StringVar(&audioDir, "audio-dir", "", "save received speech clips in this directory")
	cmd.Flags().StringVar(&micFile, "mic", "", "raw LINEAR16 file streamed as microphone audio")
	cmd.MarkFlagRequired("description")
	return cmd
}

type terminalClient struct {
	conn     *websocket.Conn
	out      io.Writer
	audioDir string

	writeMu sync.Mutex
	clip    *os.File
}

func (c *terminalClient) sendJSON(message map[string]interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *terminalClient) handleLine(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if strings.HasPrefix(line, "/select ") {
		var index int
		if _, err := fmt.Sscanf(line, "/select %d", &index); err != nil {
			return fmt.Errorf("usage: /select N")
		}
		return c.sendJSON(map[string]interface{}{"type": "checklist_select", "index": index})
	}

	if strings.HasPrefix(line, "/") {
		typ, ok := clientCommands[line]
		if !ok {
			return fmt.Errorf("unknown command %s", line)
		}
		return c.sendJSON(map[string]interface{}{"type": typ})
	}

	return c.sendJSON(map[string]interface{}{"type": "user_text", "text": line})
}

func (c *terminalClient) readLoop() {
	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				fmt.Fprintln(c.out, "! connection closed:", err)
			}
			return
		}

		if messageType == websocket.BinaryMessage {
			if c.clip != nil {
				c.clip.Write(message)
			}
			continue
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(message, &msg); err != nil {
			fmt.Fprintln(c.out, "! unmarshal error:", err)
			continue
		}
		c.render(msg)
	}
}

func (c *terminalClient) render(msg map[string]interface{}) {
	switch msg["type"] {
	case "status":
		fmt.Fprintf(c.out, "[%v]\n", msg["status"])
	case "session":
		fmt.Fprintf(c.out, "session %v\n", msg["session_id"])
	case "message":
		line := fmt.Sprintf("%v: %v", msg["role"], msg["content"])
		if url, ok := msg["asset_url"].(string); ok && url != "" {
			line += " (" + url + ")"
		}
		fmt.Fprintln(c.out, line)
	case "transcript_interim":
		fmt.Fprintf(c.out, "... %v\n", msg["text"])
	case "degraded":
		fmt.Fprintf(c.out, "! voice input unavailable: %v\n", msg["reason"])
	case "checklist":
		state, _ := msg["state"].(map[string]interface{})
		steps, _ := state["steps"].([]interface{})
		current, _ := state["current"].(float64)
		if int(current) < len(steps) {
			fmt.Fprintf(c.out, "%v, step %d/%d: %v\n", state["protocol_name"], int(current)+1, len(steps), steps[int(current)])
		}
	case "audio_start":
		c.openClip(msg["clip_id"])
	case "audio_end":
		c.closeClip()
		// Nothing is played locally, so the clip ends as soon as it arrives
		c.sendJSON(map[string]interface{}{"type": "playback_ended", "clip_id": msg["clip_id"]})
	case "audio_stop":
		c.closeClip()
	case "error":
		fmt.Fprintf(c.out, "! %v: %v\n", msg["error_code"], msg["message"])
	}
}

func (c *terminalClient) openClip(clipID interface{}) {
	if c.audioDir == "" {
		return
	}
	if err := os.MkdirAll(c.audioDir, 0755); err != nil {
		fmt.Fprintln(c.out, "! creating audio directory:", err)
		return
	}
	path := filepath.Join(c.audioDir, fmt.Sprintf("%v.mp3", clipID))
	file, err := os.Create(path)
	if err != nil {
		fmt.Fprintln(c.out, "! creating clip file:", err)
		return
	}
	c.clip = file
}

func (c *terminalClient) closeClip() {
	if c.clip != nil {
		c.clip.Close()
		c.clip = nil
	}
}

func (c *terminalClient) streamFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(c.out, "! reading mic file:", err)
		return
	}

	for start := 0; start < len(data); start += micChunkSize {
		end := min(start+micChunkSize, len(data))
		c.writeMu.Lock()
		err := c.conn.WriteMessage(websocket.BinaryMessage, data[start:end])
		c.writeMu.Unlock()
		if err != nil {
			return
		}
		time.Sleep(micChunkDelay)
	}
}

// closeGracefully sends a close frame and waits briefly for the server to hang up
func (c *terminalClient) closeGracefully(done <-chan struct{}) {
	c.writeMu.Lock()
	err := c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	if err != nil {
		return
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}
