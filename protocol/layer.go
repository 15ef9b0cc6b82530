package protocol

import (
	"errors"

	"github.com/gopacket/gopacket"
)

var LayerTypeRani = gopacket.RegisterLayerType(
	1500,
	gopacket.LayerTypeMetadata{
		Name:    "RaNi",
		Decoder: gopacket.DecodeFunc(decodeRani),
	},
)

// Layer adapts Packet to gopacket. Data payloads are exposed as the next
// layer; command entries are part of the layer contents.
type Layer struct {
	Packet
	contents []byte
	payload  []byte
}

func (l *Layer) LayerType() gopacket.LayerType {
	return LayerTypeRani
}

func (l *Layer) LayerContents() []byte {
	return l.contents
}

func (l *Layer) LayerPayload() []byte {
	return l.payload
}

func (l *Layer) CanDecode() gopacket.LayerClass {
	return LayerTypeRani
}

func (l *Layer) NextLayerType() gopacket.LayerType {
	if len(l.payload) > 0 {
		return gopacket.LayerTypePayload
	}
	return gopacket.LayerTypeZero
}

func (l *Layer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	p, err := Deserialize(data)
	if err != nil {
		if errors.Is(err, ErrTooShort) {
			df.SetTruncated()
		}
		return err
	}
	l.Packet = p
	if p.Type() == TypeData {
		l.contents = data[:HeaderSize]
		l.payload = data[HeaderSize:p.Length]
	} else {
		l.contents = data[:p.Length]
		l.payload = nil
	}
	return nil
}

func (l *Layer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	if opts.FixLengths {
		if err := l.FixLength(); err != nil {
			return err
		}
	}
	buf, err := b.PrependBytes(int(l.Length))
	if err != nil {
		return err
	}
	_, err = Serialize(&l.Packet, buf)
	return err
}

func decodeRani(data []byte, pb gopacket.PacketBuilder) error {
	l := &Layer{}
	if err := l.DecodeFromBytes(data, pb); err != nil {
		return err
	}
	pb.AddLayer(l)
	next := l.NextLayerType()
	if next == gopacket.LayerTypeZero {
		return nil
	}
	return pb.NextDecoder(next)
}
