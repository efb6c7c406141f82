package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/tomaswangen/safrs/core/logger"
	"github.com/tomaswangen/safrs/core/rest"
	"github.com/tomaswangen/safrs/core/sqlstore"
)

var configurationJSON string = `
{
	"classes": [
	  {
		"class": "user",
		"attributes": ["name", "email"],
		"id_type": "uuid",
		"relationships": [
		  {
			"key": "books_read",
			"class": "book",
			"direction": "ONE_TO_MANY"
		  }
		],
		"methods": [
		  {
			"method": "send_mail",
			"public": true
		  }
		]
	  },
	  {
		"class": "book",
		"attributes": ["title", "published"],
		"id_type": "uuid",
		"relationships": [
		  {
			"key": "reader",
			"class": "user",
			"direction": "MANY_TO_ONE"
		  }
		]
	  }
	]
}
`

// Service holds the configuration for this service
//
// use POSTGRES="host=localhost port=5432 user=postgres password=docker dbname=postgres sslmode=disable"
type Service struct {
	Postgres string `env:"POSTGRES,required" description:"the connection string for the Postgres DB"`
	Port     string `env:"PORT,default=3000" description:"the port to listen on"`
}

// sendMail is a remote method on user. It does not actually send mail, it
// only reports what it would send.
func sendMail(ctx context.Context, session rest.Session, instance rest.Instance,
	args map[string]interface{}) (interface{}, error) {
	recipient := "everybody"
	if instance != nil {
		if email, ok := instance.Attributes()["email"].(string); ok && email != "" {
			recipient = email
		}
	}
	message, _ := args["message"].(string)
	return fmt.Sprintf("mail to %s: %s", recipient, message), nil
}

func main() {
	service := &Service{}
	if err := envdecode.Decode(service); err != nil {
		panic(err)
	}
	logger.InitLogger(logrus.InfoLevel)
	rlog := logger.FromContext(nil)

	db := sqlstore.Open(service.Postgres, "basic")
	defer db.Close()

	router := mux.NewRouter()
	logger.AddRequestID(router)

	registry, err := rest.NewRegistry(configurationJSON)
	if err != nil {
		rlog.Fatal(err)
	}
	store := sqlstore.MustNew(&sqlstore.Builder{
		DB:           db,
		Registry:     registry,
		UpdateSchema: true,
	})
	api := rest.MustNew(&rest.Builder{
		Config: configurationJSON,
		Store:  store,
		Router: router,
	})
	api.HandleMethod("user", "send_mail", sendMail)

	handler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(handlers.CompressHandler(router))

	rlog.Infoln("listen on port :" + service.Port)
	rlog.Fatal(http.ListenAndServe(":"+service.Port, handler))
}
