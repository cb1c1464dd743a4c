package netsys

import (
    "errors"

    "github.com/nem0/lumixengine-net/pkg/conntable"
    "github.com/nem0/lumixengine-net/pkg/transport"
)

var (
    ErrTransportInit = errors.New("netsys: transport initialization failed")
    ErrClosed        = errors.New("netsys: system closed")
    ErrBind          = errors.New("netsys: cannot bind server host")
    ErrServerExists  = errors.New("netsys: server host already exists")
    ErrReentrantPoll = errors.New("netsys: poll called from inside a callback")

    ErrInvalidConnection = conntable.ErrInvalidConnection
    ErrBadChannel        = transport.ErrBadChannel
)
