package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"bibliohub/internal/notify"
)

type AnyEvent map[string]any

func main() {
	addr := flag.String("addr", "127.0.0.1:7070", "TCP feed server address")
	notifyAddr := flag.String("notify", "127.0.0.1:7071", "UDP notify server address")
	email := flag.String("email", "", "register this email for pickup notices")
	pretty := flag.Bool("pretty", true, "pretty print JSON events")
	flag.Parse()

	if *email != "" {
		go listenForNotices(*notifyAddr, *email)
	}

	for {
		if err := runFeed(*addr, *pretty); err != nil {
			log.Printf("[feed-client] disconnected: %v", err)
		}
		time.Sleep(1 * time.Second) // auto reconnect
	}
}

func runFeed(addr string, pretty bool) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	log.Printf("[feed-client] connected to %s", addr)

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := sc.Bytes()

		if !pretty {
			fmt.Println(string(line))
			continue
		}

		var obj AnyEvent
		if err := json.Unmarshal(line, &obj); err != nil {
			// not JSON? print raw
			fmt.Println(string(line))
			continue
		}

		b, _ := json.MarshalIndent(obj, "", "  ")
		fmt.Println(string(b))
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return os.ErrClosed
}

// listenForNotices registers the email with the UDP notify server and
// prints any pickup notices it sends back. Registration repeats every
// minute so a restarted server re-learns the address.
func listenForNotices(addr, email string) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		log.Printf("[feed-client] bad notify address %s: %v", addr, err)
		return
	}

	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		log.Printf("[feed-client] notify dial failed: %v", err)
		return
	}
	defer conn.Close()

	register, _ := json.Marshal(notify.RegisterMessage{
		Type:  notify.RegisterMessageType,
		Email: email,
	})

	go func() {
		for {
			if _, err := conn.Write(register); err != nil {
				log.Printf("[feed-client] notify register failed: %v", err)
			}
			time.Sleep(time.Minute)
		}
	}()

	log.Printf("[feed-client] registered %s for pickup notices at %s", email, addr)

	buffer := make([]byte, 2048)
	for {
		n, err := conn.Read(buffer)
		if err != nil {
			log.Printf("[feed-client] notify read failed: %v", err)
			return
		}

		var msg notify.BookAvailableMessage
		if err := json.Unmarshal(buffer[:n], &msg); err != nil || msg.Type != notify.BookAvailableMessageType {
			continue
		}

		log.Printf("[feed-client] 📚 book %s is ready for pickup (reservation %s, position %d)",
			msg.BookID, msg.ReservationID, msg.Priority)
	}
}
