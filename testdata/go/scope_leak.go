package demo

// Two handlers declare the same name; neither sees the other's.

type Response struct {
    Code int
//  ^^skip
}

func (r *Response) String() string {
//    ^^
    return "response"
}

func HandleA() string {
//   ^^here
    r := &Response{Code: 200}
//  ^^             ^^skip
    return r.String()
//         ^^
//           ^^skip
}

func HandleB() string {
//   ^^here
    r := &Response{Code: 404}
//  ^^             ^^skip
    return r.String() + HandleA()
//         ^^           ^^here
//           ^^skip
}
