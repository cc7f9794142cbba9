// demo-device simulates two byte-stream instruments for exercising
// frametap: an NMEA-style talker emitting CRLF-terminated sentences and
// a binary sensor emitting header+length packets with a varying channel
// byte. Frames are written in split chunks so the decoder on the other
// side sees realistic mid-frame boundaries.
package main

import (
	"encoding/binary"
	"fmt"
	"log"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/frametap/frametap/pkg/framing"
)

func main() {
	nmeaAddr := getenv("NMEA_ADDR", ":9100")
	sensorAddr := getenv("SENSOR_ADDR", ":9101")

	interval := 500 * time.Millisecond
	if v := os.Getenv("EMIT_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("bad EMIT_INTERVAL %q: %v", v, err)
		}
		interval = d
	}

	go serve(nmeaAddr, "nmea", interval, nmeaFrame)
	serve(sensorAddr, "sensor", interval, sensorFrame)
}

func serve(addr, name string, interval time.Duration, frame func(seq uint64) []byte) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("%s: listen %s: %v", name, addr, err)
	}
	log.Printf("%s device listening on %s", name, ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("%s: accept: %v", name, err)
			continue
		}
		log.Printf("%s: client connected from %s", name, conn.RemoteAddr())
		go emit(conn, name, interval, frame)
	}
}

func emit(conn net.Conn, name string, interval time.Duration, frame func(seq uint64) []byte) {
	defer conn.Close()

	var seq uint64
	for {
		f := frame(seq)
		seq++

		// Split each frame across two writes with a pause between them.
		half := len(f) / 2
		if _, err := conn.Write(f[:half]); err != nil {
			log.Printf("%s: client gone: %v", name, err)
			return
		}
		time.Sleep(20 * time.Millisecond)
		if _, err := conn.Write(f[half:]); err != nil {
			log.Printf("%s: client gone: %v", name, err)
			return
		}

		time.Sleep(interval)
	}
}

// nmeaFrame builds a GGA sentence with a wandering altitude. The
// checksum is the XOR of everything between "$" and "*".
func nmeaFrame(seq uint64) []byte {
	now := time.Now().UTC()
	alt := 545.0 + 10.0*rand.Float64()
	body := fmt.Sprintf("GPGGA,%02d%02d%02d.00,4807.038,N,01131.000,E,1,08,0.9,%.1f,M,46.9,M,,",
		now.Hour(), now.Minute(), now.Second(), alt)
	sentence := fmt.Sprintf("$%s*%02X", body, checksum(body))
	return framing.AppendTerminated(nil, []byte(sentence), []byte("\r\n"))
}

func checksum(s string) byte {
	var c byte
	for i := 0; i < len(s); i++ {
		c ^= s[i]
	}
	return c
}

// sensorFrame packs a sample counter plus two big-endian readings
// behind a 0x99 header whose second byte is the channel. Pattern
// "99 ??" on the receiving side matches every channel.
func sensorFrame(seq uint64) []byte {
	payload := make([]byte, 5)
	payload[0] = byte(seq)
	binary.BigEndian.PutUint16(payload[1:3], uint16(2100+rand.Intn(300)))
	binary.BigEndian.PutUint16(payload[3:5], uint16(4000+rand.Intn(1500)))

	f, err := framing.EncodeFrame([]byte{0x99, 0x01 + byte(seq%4)}, payload)
	if err != nil {
		log.Fatalf("sensor: encode: %v", err)
	}
	return f
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
