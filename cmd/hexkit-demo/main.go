package main

import (
	"fmt"
	"log"
	"os"

	"github.com/hexkit/hexkit/formats/ihex"
	"github.com/hexkit/hexkit/registry"
	"github.com/hexkit/hexkit/sparsemem"
)

func checkErr(e error) {
	if e != nil {
		panic(e)
	}
}

func main() {
	data := []byte("now is the time for all good men to come to the aid of their country.")

	f := ihex.FromMemory(sparsemem.FromBytes(0x1000, data))
	checkErr(f.SetMaxDataLen(16))

	out, err := os.Create("firmware.hex")
	checkErr(err)
	checkErr(f.Serialize(out))
	checkErr(out.Close())

	records, err := f.Records()
	checkErr(err)
	fmt.Printf("%d ihex records written\n", len(records))

	reg := registry.NewRegistry()
	checkErr(reg.Convert("firmware.hex", "firmware.srec", "", ""))

	m, err := reg.Load("firmware.srec", "srec")
	if err != nil {
		log.Fatalln(err)
	}

	start, endex := m.Start(), m.Endex()
	roundTripped, err := m.ToBytes(&start, &endex, nil)
	checkErr(err)
	fmt.Printf("round-tripped through srec: %q\n", roundTripped)
}
