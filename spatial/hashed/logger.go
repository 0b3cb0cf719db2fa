package hashed

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "hashed")
