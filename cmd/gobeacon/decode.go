package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/barnybug/gobeacon/beacon"
	"github.com/barnybug/gobeacon/util"
)

// decode parses one raw advertisement given as address, rssi and the AD
// structures in hex, and prints the decoded fields.
func decode(w io.Writer, args []string) error {
	positional, kwargs := util.SplitArgs(args)
	if len(positional) != 3 {
		return errors.New("decode needs addr rssi hex")
	}
	addr, err := beacon.ParseAddress(positional[0])
	if err != nil {
		return err
	}
	rssi, err := strconv.Atoi(positional[1])
	if err != nil {
		return errors.Wrap(err, "rssi")
	}
	raw, err := hex.DecodeString(strings.NewReplacer(" ", "", ":", "").Replace(positional[2]))
	if err != nil {
		return errors.Wrap(err, "hex")
	}
	kinds, err := beacon.ParseKindSet(util.SplitList(kwargs["formats"]))
	if err != nil {
		return err
	}

	adv, err := beacon.ParseAdvertisingData(addr, rssi, raw)
	if err != nil {
		return err
	}
	kind, payload, err := beacon.Decode(adv, kinds)
	if beacon.IsDiscard(err) {
		return err
	}
	if err != nil {
		fmt.Fprintf(w, "warning: %s\n", err)
	}
	data, _ := json.Marshal(payload.Fields(rssi))
	fmt.Fprintf(w, "%s %s %s\n", kind, addr, data)
	return nil
}
